package deployer

import "github.com/gagliardetto/solana-go"

// Event is one append-only log entry emitted by a committed instruction.
// Events are never persisted as ledger state.
type Event interface {
	Name() string
}

// Sink receives the events of a committed instruction, in emission order.
// Publish is only called after the instruction's ledger update commits.
type Sink interface {
	Publish(ev Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ev Event)

func (f SinkFunc) Publish(ev Event) { f(ev) }

type ProgramInitialized struct {
	Owner     solana.PublicKey `json:"owner"`
	Timestamp int64            `json:"timestamp"`
}

type ApproverAdded struct {
	Approver  solana.PublicKey `json:"approver"`
	AddedBy   solana.PublicKey `json:"addedBy"`
	Timestamp int64            `json:"timestamp"`
}

type ApproverRemoved struct {
	Approver  solana.PublicKey `json:"approver"`
	RemovedBy solana.PublicKey `json:"removedBy"`
	Timestamp int64            `json:"timestamp"`
}

type EcosystemCreated struct {
	Mint             solana.PublicKey `json:"mint"`
	EcosystemPartner solana.PublicKey `json:"ecosystemPartner"`
	CollateralMint   solana.PublicKey `json:"collateralMint"`
	MaxMintingCap    uint64           `json:"maxMintingCap"`
	DepositFeeBps    uint16           `json:"depositFeeBps"`
	WithdrawalFeeBps uint16           `json:"withdrawalFeeBps"`
	Timestamp        int64            `json:"timestamp"`
}

type EcosystemDeposited struct {
	EcosystemMint solana.PublicKey `json:"ecosystemMint"`
	Depositor     solana.PublicKey `json:"depositor"`
	Amount        uint64           `json:"amount"`
	Fee           uint64           `json:"fee"`
	Timestamp     int64            `json:"timestamp"`
}

type FeesCollected struct {
	EcosystemMint solana.PublicKey `json:"ecosystemMint"`
	Collector     solana.PublicKey `json:"collector"`
	AmountSP      uint64           `json:"amountSp"`
	Timestamp     int64            `json:"timestamp"`
}

type GlobalFreezeToggled struct {
	NewState  bool             `json:"newState"`
	ToggledBy solana.PublicKey `json:"toggledBy"`
	Timestamp int64            `json:"timestamp"`
}

type EcosystemFreezeToggled struct {
	EcosystemMint solana.PublicKey `json:"ecosystemMint"`
	NewState      bool             `json:"newState"`
	ToggledBy     solana.PublicKey `json:"toggledBy"`
	Timestamp     int64            `json:"timestamp"`
}

type MaxCapUpdated struct {
	EcosystemMint solana.PublicKey `json:"ecosystemMint"`
	OldCap        uint64           `json:"oldCap"`
	NewCap        uint64           `json:"newCap"`
	UpdatedBy     solana.PublicKey `json:"updatedBy"`
	Timestamp     int64            `json:"timestamp"`
}

type WithdrawalRequestCreated struct {
	Merchant      solana.PublicKey `json:"merchant"`
	EcosystemMint solana.PublicKey `json:"ecosystemMint"`
	Amount        uint64           `json:"amount"`
	Timestamp     int64            `json:"timestamp"`
}

type WithdrawalRequestApproved struct {
	Merchant      solana.PublicKey `json:"merchant"`
	EcosystemMint solana.PublicKey `json:"ecosystemMint"`
	ApprovedBy    solana.PublicKey `json:"approvedBy"`
	Amount        uint64           `json:"amount"`
	Fee           uint64           `json:"fee"`
	Timestamp     int64            `json:"timestamp"`
}

type PurchaseProcessed struct {
	EcosystemMint     solana.PublicKey `json:"ecosystemMint"`
	User              solana.PublicKey `json:"user"`
	Merchant          solana.PublicKey `json:"merchant"`
	Amount            uint64           `json:"amount"`
	Credited          uint64           `json:"credited"`
	PurchaseReference string           `json:"purchaseReference"`
	Timestamp         int64            `json:"timestamp"`
}

func (ProgramInitialized) Name() string        { return "ProgramInitialized" }
func (ApproverAdded) Name() string             { return "ApproverAdded" }
func (ApproverRemoved) Name() string           { return "ApproverRemoved" }
func (EcosystemCreated) Name() string          { return "EcosystemCreated" }
func (EcosystemDeposited) Name() string        { return "EcosystemDeposited" }
func (FeesCollected) Name() string             { return "FeesCollected" }
func (GlobalFreezeToggled) Name() string       { return "GlobalFreezeToggled" }
func (EcosystemFreezeToggled) Name() string    { return "EcosystemFreezeToggled" }
func (MaxCapUpdated) Name() string             { return "MaxCapUpdated" }
func (WithdrawalRequestCreated) Name() string  { return "WithdrawalRequestCreated" }
func (WithdrawalRequestApproved) Name() string { return "WithdrawalRequestApproved" }
func (PurchaseProcessed) Name() string         { return "PurchaseProcessed" }

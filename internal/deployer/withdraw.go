package deployer

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/AymanF10/ecosystem/backend/internal/ledger"
)

// CreateWithdrawalRequest snapshots the merchant's full balance into a
// pending request. Only one unapproved request may exist per merchant and
// ecosystem; approval deletes the record, clearing the way for the next one.
func (e *Engine) CreateWithdrawalRequest(payer, mint solana.PublicKey) error {
	return e.instruction("create_withdrawal_request", func(v ledger.View, emit func(Event)) error {
		if _, err := loadEcosystem(v, mint); err != nil {
			return err
		}
		mb, ok, err := loadMerchantBalance(v, payer, mint)
		if err != nil {
			return err
		}
		if !ok || mb.Balance == 0 {
			return ErrNoBalanceToWithdraw
		}

		if existing, ok, err := loadWithdrawalRequest(v, payer, mint); err != nil {
			return err
		} else if ok && !existing.IsApproved {
			return ErrPendingWithdrawalExists
		}

		wr := WithdrawalRequest{
			Merchant:      payer,
			EcosystemMint: mint,
			Amount:        mb.Balance,
			Timestamp:     e.unixNow(),
		}
		if err := storeWithdrawalRequest(v, wr); err != nil {
			return err
		}
		emit(WithdrawalRequestCreated{
			Merchant:      payer,
			EcosystemMint: mint,
			Amount:        wr.Amount,
			Timestamp:     wr.Timestamp,
		})
		return nil
	})
}

// ApproveWithdrawalRequest settles a pending request: the approver must be a
// member of the registry's approver set, the merchant balance must still
// cover the snapshotted amount, and the payout is the snapshot minus the
// withdrawal fee. The fee converts to points; the full snapshot leaves the
// merchant balance. The request record is deleted on success.
func (e *Engine) ApproveWithdrawalRequest(approver, merchant, mint, outputMint, merchantTokenAccount solana.PublicKey) error {
	return e.instruction("approve_withdrawal_request", func(v ledger.View, emit func(Event)) error {
		cfg, err := loadConfig(v)
		if err != nil {
			return err
		}
		if !containsKey(cfg.Approvers, approver) {
			return ErrNotAnApprover
		}

		wr, ok, err := loadWithdrawalRequest(v, merchant, mint)
		if err != nil {
			return err
		}
		if !ok {
			return ErrRequestNotFound
		}
		if wr.IsApproved {
			return ErrWithdrawalAlreadyApproved
		}
		if !outputMint.Equals(e.settlementMint) {
			return ErrInvalidOutputMint
		}

		eco, err := loadEcosystem(v, mint)
		if err != nil {
			return err
		}
		mb, ok, err := loadMerchantBalance(v, merchant, mint)
		if err != nil {
			return err
		}
		if !ok || mb.Balance < wr.Amount {
			return ErrInsufficientBalance
		}

		fee, err := feeFloor(wr.Amount, eco.WithdrawalFeeBps)
		if err != nil {
			return err
		}
		if eco.WithdrawalFeeBps > 0 && fee == 0 {
			fee = 1
		}
		payout, err := checkedSub(wr.Amount, fee)
		if err != nil {
			return err
		}

		mb.Balance, err = checkedSub(mb.Balance, wr.Amount)
		if err != nil {
			return err
		}

		if fee > 0 {
			if err := e.mintPoints(v, mint, &eco, fee); err != nil {
				return err
			}
		}

		merchantAccount, err := e.tokens.GetAccount(v, merchantTokenAccount)
		if err != nil {
			return err
		}
		if !merchantAccount.Mint.Equals(outputMint) {
			return ErrInvalidToken
		}
		if !merchantAccount.Owner.Equals(merchant) {
			return ErrUnauthorized
		}

		settlementMint, err := e.tokens.GetMint(v, e.settlementMint)
		if err != nil {
			return err
		}
		outputVault, _, err := DeriveVaultTokenAccount(e.settlementProgram, e.settlementMint)
		if err != nil {
			return err
		}
		vault := mustPDA(DeriveVaultPDA())
		if err := e.tokens.TransferChecked(v, e.settlementProgram, e.settlementMint, outputVault, merchantTokenAccount, vault, payout, settlementMint.Decimals); err != nil {
			return fmt.Errorf("pay out withdrawal: %w", err)
		}

		if err := storeMerchantBalance(v, mb); err != nil {
			return err
		}
		if err := storeEcosystem(v, mint, eco); err != nil {
			return err
		}
		v.Delete(withdrawalRequestKey(merchant, mint))

		emit(WithdrawalRequestApproved{
			Merchant:      merchant,
			EcosystemMint: mint,
			ApprovedBy:    approver,
			Amount:        wr.Amount,
			Fee:           fee,
			Timestamp:     e.unixNow(),
		})
		return nil
	})
}

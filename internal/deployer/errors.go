package deployer

import "errors"

var (
	ErrUnauthorized              = errors.New("unauthorized")
	ErrExceedsMaximumCap         = errors.New("exceeds maximum minting cap")
	ErrInvalidCollateralToken    = errors.New("invalid collateral token")
	ErrInvalidToken              = errors.New("invalid token for this operation")
	ErrArithmeticOverflow        = errors.New("arithmetic overflow")
	ErrInvalidFeePercentage      = errors.New("invalid fee percentage: must be <= 10000")
	ErrFreezeStateActive         = errors.New("operation not allowed: freeze state is active")
	ErrNoFeesToCollect           = errors.New("no fees available to collect")
	ErrInvalidMaxCap             = errors.New("invalid max cap: new cap must be >= current supply")
	ErrInvalidProgramID          = errors.New("invalid program id")
	ErrInvalidPurchaseReference  = errors.New("invalid purchase reference string")
	ErrInvalidOutputMint         = errors.New("output mint must be the settlement currency")
	ErrNoBalanceToWithdraw       = errors.New("no balance to withdraw")
	ErrInvalidAmount             = errors.New("invalid amount: cannot be zero")
	ErrApproverAlreadyExists     = errors.New("approver already exists")
	ErrApproverNotFound          = errors.New("approver not found")
	ErrNotAnApprover             = errors.New("not an authorized approver")
	ErrWithdrawalAlreadyApproved = errors.New("withdrawal request already approved")
	ErrInsufficientBalance       = errors.New("insufficient balance for withdrawal")
	ErrPendingWithdrawalExists   = errors.New("pending withdrawal request already exists")

	ErrAlreadyInitialized = errors.New("registry already initialized")
	ErrNotInitialized     = errors.New("registry not initialized")
	ErrEcosystemExists    = errors.New("ecosystem already exists for this mint")
	ErrEcosystemNotFound  = errors.New("ecosystem not found")
	ErrRequestNotFound    = errors.New("withdrawal request not found")
)

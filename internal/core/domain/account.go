package domain

import (
	"errors"
	"time"
)

// AccountStatus enumerates the verification lifecycle of an account.
type AccountStatus string

const (
	AccountStatusUnregistered        AccountStatus = "unregistered"
	AccountStatusPendingVerification AccountStatus = "pending_verification"
	AccountStatusVerified            AccountStatus = "verified"
)

// ErrInvalidAccountRecord is returned when a persisted record carries a combination of
// verification fields that no state transition can produce.
var ErrInvalidAccountRecord = errors.New("account record is in an invalid state")

// OTP is a pending one-time passcode and its absolute expiry.
type OTP struct {
	Code      string
	ExpiresAt time.Time
}

// AccountState is the closed set of states a persisted account can be in.
// An email with no record is Unregistered and has no AccountState value.
type AccountState interface {
	Status() AccountStatus
	accountState()
}

// PendingVerification holds the verification cycle currently awaiting an OTP.
type PendingVerification struct {
	OTP OTP
}

// Status implements AccountState.
func (PendingVerification) Status() AccountStatus { return AccountStatusPendingVerification }

func (PendingVerification) accountState() {}

// Verified marks an account whose email ownership has been proven.
type Verified struct{}

// Status implements AccountState.
func (Verified) Status() AccountStatus { return AccountStatusVerified }

func (Verified) accountState() {}

// Account is the in-memory view of an account. The verification fields live in State so a
// verified account with a pending OTP cannot be expressed.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	State        AccountState
	CreatedAt    time.Time
}

// Status reports the account status, treating a missing state as unregistered.
func (a Account) Status() AccountStatus {
	if a.State == nil {
		return AccountStatusUnregistered
	}
	return a.State.Status()
}

// IsVerified reports whether the account completed OTP verification.
func (a Account) IsVerified() bool {
	_, ok := a.State.(Verified)
	return ok
}

// PendingOTP returns the pending OTP when the account awaits verification.
func (a Account) PendingOTP() (OTP, bool) {
	pending, ok := a.State.(PendingVerification)
	if !ok {
		return OTP{}, false
	}
	return pending.OTP, true
}

// Record flattens the account into its persisted representation.
func (a Account) Record() AccountRecord {
	rec := AccountRecord{
		ID:           a.ID,
		Email:        a.Email,
		PasswordHash: a.PasswordHash,
		CreatedAt:    a.CreatedAt,
	}
	rec.IsVerified, rec.OTP, rec.OTPExpiresAt = FlattenState(a.State)
	return rec
}

// AccountRecord mirrors the persisted shape of an account: verification state is stored as a
// flag plus a nullable OTP pair.
type AccountRecord struct {
	ID           string
	Email        string
	PasswordHash string
	IsVerified   bool
	OTP          *string
	OTPExpiresAt *time.Time
	CreatedAt    time.Time
}

// Account converts the record into the tagged representation, rejecting illegal combinations.
func (r AccountRecord) Account() (Account, error) {
	state, err := r.State()
	if err != nil {
		return Account{}, err
	}
	return Account{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		State:        state,
		CreatedAt:    r.CreatedAt,
	}, nil
}

// State derives the account state from the flat verification fields.
func (r AccountRecord) State() (AccountState, error) {
	if (r.OTP == nil) != (r.OTPExpiresAt == nil) {
		return nil, ErrInvalidAccountRecord
	}
	if r.IsVerified {
		if r.OTP != nil {
			return nil, ErrInvalidAccountRecord
		}
		return Verified{}, nil
	}
	if r.OTP == nil {
		return nil, ErrInvalidAccountRecord
	}
	return PendingVerification{OTP: OTP{Code: *r.OTP, ExpiresAt: r.OTPExpiresAt.UTC()}}, nil
}

// FlattenState maps a state onto the persisted is_verified/otp/otp_expires_at columns.
func FlattenState(state AccountState) (bool, *string, *time.Time) {
	switch s := state.(type) {
	case Verified:
		return true, nil, nil
	case PendingVerification:
		code := s.OTP.Code
		expiresAt := s.OTP.ExpiresAt.UTC()
		return false, &code, &expiresAt
	default:
		return false, nil, nil
	}
}

// AccountUpdate describes the fields an update rewrites. Nil fields are left untouched.
// A non-nil State rewrites all three verification columns together.
type AccountUpdate struct {
	PasswordHash *string
	State        AccountState
}

// IsEmpty reports whether the update changes nothing.
func (u AccountUpdate) IsEmpty() bool {
	return u.PasswordHash == nil && u.State == nil
}

// Apply returns a copy of the account with the update applied.
func (u AccountUpdate) Apply(a Account) Account {
	if u.PasswordHash != nil {
		a.PasswordHash = *u.PasswordHash
	}
	if u.State != nil {
		a.State = u.State
	}
	return a
}

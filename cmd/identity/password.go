package identity

import "bugtrack/cmd/security/password"

// PasswordHasher turns plain passwords into PHC strings and checks them.
// The zero value reads its policy from BUGTRACK_PASSWORD_* / BUGTRACK_ARGON2_*.
type PasswordHasher struct {
	cfg *password.Config
}

// NewPasswordHasher pins an explicit password config.
func NewPasswordHasher(cfg password.Config) PasswordHasher {
	return PasswordHasher{cfg: &cfg}
}

func (h PasswordHasher) config() (password.Config, error) {
	if h.cfg != nil {
		return *h.cfg, nil
	}
	return password.FromEnv()
}

// Hash validates plain against the policy and returns an Argon2id PHC string.
// identifiers (username, email) must not appear inside plain. Policy
// violations are reported as ErrInvalidInput.
func (h PasswordHasher) Hash(op, plain string, identifiers ...string) (string, error) {
	cfg, err := h.config()
	if err != nil {
		return "", err
	}
	enc, err := cfg.HashFor(plain, identifiers...)
	if password.IsPolicyError(err) {
		return "", invalid(op, err.Error())
	}
	return enc, err
}

// CheckAccount runs the account and password checks CreateUser would, without
// hashing or storing anything.
func (h PasswordHasher) CheckAccount(op string, in CreateUserInput) error {
	if err := validateCreate(op, &in); err != nil {
		return err
	}
	cfg, err := h.config()
	if err != nil {
		return err
	}
	if err := cfg.ValidateFor(in.Password, accountIdentifiers(in)...); err != nil {
		if password.IsPolicyError(err) {
			return invalid(op, err.Error())
		}
		return err
	}
	return nil
}

// accountIdentifiers lists the values a new password must not embed.
func accountIdentifiers(in CreateUserInput) []string {
	return []string{in.Username, password.EmailLocalPart(in.Email)}
}

// Verify reports whether plain matches the stored PHC hash.
func (h PasswordHasher) Verify(encodedPHC, plain string) (bool, error) {
	cfg, err := h.config()
	if err != nil {
		return false, err
	}
	return cfg.Verify(encodedPHC, plain)
}

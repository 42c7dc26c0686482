package authcore

import "time"

// SecurityReport is a read-only snapshot of the engine's security posture,
// returned by [Engine.SecurityReport]. It carries no secrets.
type SecurityReport struct {
	SigningAlgorithm    string
	AccessTTL           time.Duration
	RefreshTTL          time.Duration
	Argon2              PasswordConfigReport
	RefreshChecksUser   bool
	LoginHistoryEnabled bool
	AuditEnabled        bool
	MetricsEnabled      bool
	StoreTimeout        time.Duration
	RoleCount           int
}

type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	roleCount := 0
	if rm := e.Roles(); rm != nil {
		roleCount = rm.Count()
	}

	return SecurityReport{
		SigningAlgorithm: e.config.JWT.Algorithm,
		AccessTTL:        e.config.JWT.AccessTTL,
		RefreshTTL:       e.config.JWT.RefreshTTL,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		RefreshChecksUser:   e.config.Refresh.CheckUser,
		LoginHistoryEnabled: e.config.Login.RecordHistory,
		AuditEnabled:        e.audit != nil,
		MetricsEnabled:      e.metrics.Enabled(),
		StoreTimeout:        e.config.Session.OperationTimeout,
		RoleCount:           roleCount,
	}
}

package reservation

import (
	"fmt"
	"sync"
	"time"
)

// GraceKind selects which grace window a lookup refers to.
type GraceKind string

const (
	GraceConfirmationExpiry GraceKind = "confirmationExpiry"
	GraceCompletion         GraceKind = "completionGrace"
	GraceNoShow             GraceKind = "noShowGrace"
)

// GraceWindows are the grace values for one service type. Confirmation
// expiry is configured in hours, the rest in minutes; lookups always return
// minutes-resolution durations.
type GraceWindows struct {
	ConfirmationExpiryHours int `mapstructure:"CONFIRMATION_EXPIRY_HOURS" json:"confirmationExpiryHours"`
	CompletionGraceMinutes  int `mapstructure:"COMPLETION_GRACE_MINUTES" json:"completionGraceMinutes"`
	NoShowGraceMinutes      int `mapstructure:"NO_SHOW_GRACE_MINUTES" json:"noShowGraceMinutes"`
}

// GraceConfig is the full grace-period configuration: platform defaults plus
// per-service-type overrides.
type GraceConfig struct {
	Default      GraceWindows            `mapstructure:"DEFAULT" json:"default"`
	ServiceTypes map[string]GraceWindows `mapstructure:"SERVICE_TYPES" json:"serviceTypes"`
}

// GracePolicy answers grace-period lookups. Reads are pure; Update swaps the
// whole configuration atomically after validating it, so a bad config is
// never applied partially.
type GracePolicy struct {
	mu  sync.RWMutex
	cfg GraceConfig
}

// NewGracePolicy validates cfg and builds a policy from it.
func NewGracePolicy(cfg GraceConfig) (*GracePolicy, error) {
	if err := validateGraceConfig(cfg); err != nil {
		return nil, err
	}
	return &GracePolicy{cfg: cfg}, nil
}

func validateGraceConfig(cfg GraceConfig) error {
	if err := validateGraceWindows("default", cfg.Default); err != nil {
		return err
	}
	for st, w := range cfg.ServiceTypes {
		if err := validateGraceWindows("serviceTypes."+st, w); err != nil {
			return err
		}
	}
	return nil
}

func validateGraceWindows(field string, w GraceWindows) error {
	if w.ConfirmationExpiryHours < 1 || w.ConfirmationExpiryHours > 168 {
		return &PolicyValidationError{
			Field:   field + ".confirmationExpiryHours",
			Message: fmt.Sprintf("must be between 1 and 168 hours, got %d", w.ConfirmationExpiryHours),
		}
	}
	if w.CompletionGraceMinutes < 1 || w.CompletionGraceMinutes > 480 {
		return &PolicyValidationError{
			Field:   field + ".completionGraceMinutes",
			Message: fmt.Sprintf("must be between 1 and 480 minutes, got %d", w.CompletionGraceMinutes),
		}
	}
	if w.NoShowGraceMinutes < 1 || w.NoShowGraceMinutes > 480 {
		return &PolicyValidationError{
			Field:   field + ".noShowGraceMinutes",
			Message: fmt.Sprintf("must be between 1 and 480 minutes, got %d", w.NoShowGraceMinutes),
		}
	}
	return nil
}

// For returns the grace window for a service type, falling back to the
// platform default when no override exists.
func (p *GracePolicy) For(serviceType string, kind GraceKind) time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	w := p.cfg.Default
	if override, ok := p.cfg.ServiceTypes[serviceType]; ok {
		w = override
	}
	return graceDuration(w, kind)
}

// Min returns the smallest configured value for the kind across the default
// and every override. The scheduler uses it as a safe scan cutoff so no
// candidate with a shorter grace window is missed.
func (p *GracePolicy) Min(kind GraceKind) time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	min := graceDuration(p.cfg.Default, kind)
	for _, w := range p.cfg.ServiceTypes {
		if d := graceDuration(w, kind); d < min {
			min = d
		}
	}
	return min
}

// Config returns a copy of the current configuration.
func (p *GracePolicy) Config() GraceConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := GraceConfig{Default: p.cfg.Default}
	if p.cfg.ServiceTypes != nil {
		out.ServiceTypes = make(map[string]GraceWindows, len(p.cfg.ServiceTypes))
		for k, v := range p.cfg.ServiceTypes {
			out.ServiceTypes[k] = v
		}
	}
	return out
}

// Update validates the replacement configuration and swaps it in whole.
func (p *GracePolicy) Update(cfg GraceConfig) error {
	if err := validateGraceConfig(cfg); err != nil {
		return err
	}
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
	return nil
}

func graceDuration(w GraceWindows, kind GraceKind) time.Duration {
	switch kind {
	case GraceConfirmationExpiry:
		return time.Duration(w.ConfirmationExpiryHours) * time.Hour
	case GraceCompletion:
		return time.Duration(w.CompletionGraceMinutes) * time.Minute
	case GraceNoShow:
		return time.Duration(w.NoShowGraceMinutes) * time.Minute
	}
	return 0
}

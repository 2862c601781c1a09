// Package taxrules serves tax rates from a YAML file that may be reloaded
// while the process runs.
package taxrules

import (
	"context"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/worksphere/billing/internal/config"
	"github.com/worksphere/billing/internal/domain/taxrule"
	ierr "github.com/worksphere/billing/internal/errors"
	"github.com/worksphere/billing/internal/logger"
)

// FileSource implements taxrule.Source over a "rules:" map in a YAML file
type FileSource struct {
	mu     sync.RWMutex
	rules  map[string]*taxrule.TaxRule
	v      *viper.Viper
	logger *logger.Logger
}

var _ taxrule.Source = (*FileSource)(nil)

// NewFileSource loads cfg.RulesFile. An empty path yields an empty rule set,
// which taxes everything at zero.
func NewFileSource(cfg config.TaxConfig, log *logger.Logger) (*FileSource, error) {
	s := &FileSource{rules: map[string]*taxrule.TaxRule{}, logger: log}
	if cfg.RulesFile == "" {
		log.Warnw("no tax rules file configured, every jurisdiction is untaxed")
		return s, nil
	}

	s.v = viper.New()
	s.v.SetConfigFile(cfg.RulesFile)
	if err := s.v.ReadInConfig(); err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Unable to read tax rules file %s", cfg.RulesFile).
			Mark(ierr.ErrValidation)
	}
	if err := s.reload(); err != nil {
		return nil, err
	}

	if cfg.Watch {
		s.v.OnConfigChange(func(e fsnotify.Event) {
			if err := s.reload(); err != nil {
				s.logger.Errorw("tax rules reload failed, keeping previous rules", "file", e.Name, "error", err)
				return
			}
			s.logger.Infow("tax rules reloaded", "file", e.Name, "rules", s.Len())
		})
		s.v.WatchConfig()
	}
	return s, nil
}

func (s *FileSource) reload() error {
	raw := s.v.GetStringMapString("rules")
	rates := make(map[string]decimal.Decimal, len(raw))
	for key, value := range raw {
		rate, err := decimal.NewFromString(value)
		if err != nil {
			return ierr.WithError(err).
				WithHintf("Tax rate for %s is not a decimal", key).
				Mark(ierr.ErrValidation)
		}
		rates[key] = rate
	}
	return s.UpdateTaxRules(rates)
}

// UpdateTaxRules replaces the whole rule set. Invalid input leaves the
// current rules in place.
func (s *FileSource) UpdateTaxRules(rates map[string]decimal.Decimal) error {
	next := make(map[string]*taxrule.TaxRule, len(rates))
	for key, rate := range rates {
		if rate.IsNegative() {
			return ierr.NewErrorf("negative tax rate for %s", key).
				WithHint("Tax rates must be zero or positive").
				Mark(ierr.ErrValidation)
		}
		rule, err := taxrule.Parse(key, rate)
		if err != nil {
			return ierr.WithError(err).
				WithHint("Tax rule keys look like <country>-<planType>").
				Mark(ierr.ErrValidation)
		}
		next[rule.Key] = rule
	}

	s.mu.Lock()
	s.rules = next
	s.mu.Unlock()
	return nil
}

func (s *FileSource) Match(_ context.Context, country, planType string) ([]*taxrule.TaxRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*taxrule.TaxRule
	keys := []string{taxrule.Key(country, planType)}
	if wildcard := taxrule.Key(country, taxrule.Wildcard); wildcard != keys[0] {
		keys = append(keys, wildcard)
	}
	for _, key := range keys {
		if rule, ok := s.rules[key]; ok {
			cp := *rule
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *FileSource) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rules)
}

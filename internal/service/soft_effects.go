package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"loyalty-topup/internal/core/domain"

	"github.com/rs/zerolog"
)

const defaultSoftEffectTimeout = 5 * time.Second

// errSkipped marks an effect that had nothing to do.
var errSkipped = errors.New("skipped")

// softEffect is one best-effort step run after the settlement transaction commits.
type softEffect struct {
	name string
	run  func(ctx context.Context) error
}

// softEffects runs an ordered list of effects, each with its own timeout and
// error boundary. A failing or panicking effect never stops the next one.
type softEffects struct {
	timeout time.Duration
	log     zerolog.Logger
}

func newSoftEffects(timeout time.Duration, log zerolog.Logger) softEffects {
	if timeout <= 0 {
		timeout = defaultSoftEffectTimeout
	}
	return softEffects{timeout: timeout, log: log}
}

// run executes effects on a context detached from the caller's cancellation.
func (s softEffects) run(ctx context.Context, effects []softEffect) []domain.EffectOutcome {
	base := context.WithoutCancel(ctx)
	out := make([]domain.EffectOutcome, 0, len(effects))
	for _, e := range effects {
		out = append(out, s.runOne(base, e))
	}
	return out
}

func (s softEffects) runOne(base context.Context, e softEffect) (res domain.EffectOutcome) {
	res.Name = e.name
	ctx, cancel := context.WithTimeout(base, s.timeout)
	defer cancel()
	defer func() {
		if p := recover(); p != nil {
			res.Error = fmt.Sprintf("panic: %v", p)
			s.log.Error().Str("effect", e.name).Interface("panic", p).Msg("soft effect panicked")
		}
	}()

	err := e.run(ctx)
	switch {
	case err == nil:
	case errors.Is(err, errSkipped):
		res.Skipped = true
	default:
		res.Error = err.Error()
		s.log.Warn().Err(err).Str("effect", e.name).Msg("soft effect failed")
	}
	return res
}

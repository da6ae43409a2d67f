// Package external hands URLs to the operating system's default browser.
package external

import (
	"context"
	"errors"
	"fmt"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("external")

var ErrNoOpener = errors.New("no external opener available")

type Opener interface {
	Open(ctx context.Context, rawURL string) error
}

// Func adapts a plain function, e.g. the webview runtime's browser call.
type Func func(ctx context.Context, rawURL string) error

func (f Func) Open(ctx context.Context, rawURL string) error { return f(ctx, rawURL) }

// Chain tries each opener in order and stops at the first success.
type Chain []Opener

func (c Chain) Open(ctx context.Context, rawURL string) error {
	var errs []error
	for _, o := range c {
		if o == nil {
			continue
		}
		err := o.Open(ctx, rawURL)
		if err == nil {
			return nil
		}
		log.Debugw("opener failed, trying next", "opener", fmt.Sprintf("%T", o), "err", err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return ErrNoOpener
	}
	return fmt.Errorf("%w: %w", ErrNoOpener, errors.Join(errs...))
}

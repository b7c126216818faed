package eth

import "context"

// RLProvider wraps a Provider with a Limiter.
type RLProvider struct {
	p Provider
	l Limiter
}

func WrapWithLimiter(p Provider, l Limiter) Provider { return RLProvider{p: p, l: l} }

func (r RLProvider) BlockNumber(ctx context.Context) (uint64, error) {
	if err := r.l.Wait(ctx); err != nil {
		return 0, err
	}
	return r.p.BlockNumber(ctx)
}

func (r RLProvider) GetCode(ctx context.Context, address string) (string, error) {
	if err := r.l.Wait(ctx); err != nil {
		return "", err
	}
	return r.p.GetCode(ctx, address)
}

func (r RLProvider) GetStorageAt(ctx context.Context, address, slot string) (string, error) {
	if err := r.l.Wait(ctx); err != nil {
		return "", err
	}
	return r.p.GetStorageAt(ctx, address, slot)
}

func (r RLProvider) Call(ctx context.Context, address, data string) (string, error) {
	if err := r.l.Wait(ctx); err != nil {
		return "", err
	}
	return r.p.Call(ctx, address, data)
}

package facade

import (
	"context"
	"crypto/subtle"

	"go.uber.org/zap"
)

// ValidateUserLogin returns the account id, or "" for bad credentials.
func (svc *Service) ValidateUserLogin(ctx context.Context, username, password string) (string, error) {
	return svc.store.ValidateUserLogin(ctx, username, password)
}

// ValidateAccessToken checks token against the cached token, falling back
// to the store and caching the token once it passes.
func (svc *Service) ValidateAccessToken(ctx context.Context, accountID, token string) (bool, error) {
	unlock := svc.accessTokens.lock(accountID)
	defer unlock()
	if cached, ok := svc.accessTokens.get(accountID); ok {
		return cached != "" && subtle.ConstantTimeCompare([]byte(cached), []byte(token)) == 1, nil
	}
	pass, err := svc.store.ValidateAccessToken(ctx, accountID, token)
	if err != nil {
		return false, err
	}
	if pass {
		svc.accessTokens.set(accountID, token)
	}
	return pass, nil
}

func (svc *Service) GetUserLevel(ctx context.Context, accountID string) (uint8, bool, error) {
	level, err := svc.store.GetUserLevel(ctx, accountID)
	return absent(level, err)
}

func (svc *Service) GetGold(ctx context.Context, accountID string) (int64, bool, error) {
	return svc.gold.read(ctx, accountID, func(ctx context.Context) (int64, error) {
		return svc.store.GetGold(ctx, accountID)
	})
}

// ChangeGold adds delta to the account gold under the balance policy and
// returns the new balance.
func (svc *Service) ChangeGold(ctx context.Context, accountID string, delta int64) (int64, bool, error) {
	return svc.changeBalance(ctx, svc.gold, accountID, delta,
		svc.store.GetGold, svc.store.UpdateGold)
}

func (svc *Service) GetCash(ctx context.Context, accountID string) (int64, bool, error) {
	return svc.cash.read(ctx, accountID, func(ctx context.Context) (int64, error) {
		return svc.store.GetCash(ctx, accountID)
	})
}

// ChangeCash adds delta to the account cash under the balance policy and
// returns the new balance.
func (svc *Service) ChangeCash(ctx context.Context, accountID string, delta int64) (int64, bool, error) {
	return svc.changeBalance(ctx, svc.cash, accountID, delta,
		svc.store.GetCash, svc.store.UpdateCash)
}

func (svc *Service) changeBalance(
	ctx context.Context,
	t *table[string, int64],
	accountID string,
	delta int64,
	load func(context.Context, string) (int64, error),
	write func(context.Context, string, int64) error,
) (int64, bool, error) {
	unlock := t.lock(accountID)
	defer unlock()
	current, ok, err := t.fetch(ctx, accountID, func(ctx context.Context) (int64, error) {
		return load(ctx, accountID)
	})
	if err != nil || !ok {
		return 0, ok, err
	}
	next, err := svc.policy.apply(current, delta)
	if err != nil {
		return current, true, err
	}
	if err := t.put(accountID, next, func() error { return write(ctx, accountID, next) }); err != nil {
		svc.logger.Error("balance write failed",
			zap.String("account_id", accountID), zap.Int64("delta", delta), zap.Error(err))
		return current, true, err
	}
	return next, true, nil
}

func (svc *Service) UpdateAccessToken(ctx context.Context, accountID, token string) error {
	unlock := svc.accessTokens.lock(accountID)
	defer unlock()
	return svc.accessTokens.put(accountID, token, func() error {
		return svc.store.UpdateAccessToken(ctx, accountID, token)
	})
}

// CreateUserLogin registers an account and returns its id.
func (svc *Service) CreateUserLogin(ctx context.Context, username, password string) (string, error) {
	unlock := svc.usernames.lock(username)
	defer unlock()
	id, err := svc.store.CreateUserLogin(ctx, username, password)
	if err != nil {
		return "", err
	}
	svc.usernames.set(username, struct{}{})
	return id, nil
}

func (svc *Service) FindUsername(ctx context.Context, username string) (int64, error) {
	return svc.findName(ctx, svc.usernames, username, svc.store.FindUsername)
}

// findName answers an existence check. Only positive counts are cached; a
// free name stays uncached so it is not reported taken later.
func (svc *Service) findName(
	ctx context.Context,
	t *table[string, struct{}],
	name string,
	count func(context.Context, string) (int64, error),
) (int64, error) {
	if t.has(name) {
		return 1, nil
	}
	n, err := count(ctx, name)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		t.set(name, struct{}{})
	}
	return n, nil
}

package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kasuganosora/mmocache/codec"
	"github.com/kasuganosora/mmocache/entity"
	"github.com/kasuganosora/mmocache/facade"
	"github.com/kasuganosora/mmocache/game/item"
	"github.com/kasuganosora/mmocache/game/storage"
	mw "github.com/kasuganosora/mmocache/middleware"
)

// ErrRemote wraps any failure reported by the cache service that has no
// facade sentinel of its own.
var ErrRemote = errors.New("rpc: remote error")

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL string
	// Service and Secret sign the bearer token. An empty Secret sends no
	// Authorization header.
	Service    string
	Secret     string
	TTL        time.Duration
	HTTPClient *http.Client
	Codec      codec.Codec[*entity.Character]
}

// Client calls a remote cache service. It implements storage.Client and
// the account lookups of the player gateway.
type Client struct {
	base    string
	service string
	secret  string
	ttl     time.Duration
	http    *http.Client
	codec   codec.Codec[*entity.Character]

	mu      sync.Mutex
	token   string
	expires time.Time
}

var _ storage.Client = (*Client)(nil)

// NewClient creates a Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("rpc: base url is required")
	}
	if cfg.Secret != "" && cfg.Service == "" {
		return nil, errors.New("rpc: service name is required with a secret")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Codec == nil {
		cfg.Codec = codec.Msgpack[*entity.Character]{}
	}
	return &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		service: cfg.Service,
		secret:  cfg.Secret,
		ttl:     cfg.TTL,
		http:    cfg.HTTPClient,
		codec:   cfg.Codec,
	}, nil
}

// bearer returns a cached token, re-signing it once less than a tenth of
// its lifetime remains.
func (c *Client) bearer() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Until(c.expires) > c.ttl/10 {
		return c.token, nil
	}
	tok, err := mw.GenerateToken(c.service, c.secret, c.ttl)
	if err != nil {
		return "", fmt.Errorf("rpc: sign token: %w", err)
	}
	c.token, c.expires = tok, time.Now().Add(c.ttl)
	return tok, nil
}

func (c *Client) call(ctx context.Context, op facade.OpCode, req *Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("rpc: %s: %w", op, err)
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+"/rpc/"+strconv.Itoa(int(op)), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("rpc: %s: %w", op, err)
	}
	hreq.Header.Set("Content-Type", "application/json")
	if id := facade.TraceID(ctx); id != "" {
		hreq.Header.Set(mw.TraceIDHeader, id)
	}
	if c.secret != "" {
		tok, err := c.bearer()
		if err != nil {
			return nil, err
		}
		hreq.Header.Set("Authorization", "Bearer "+tok)
	}

	hresp, err := c.http.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("rpc: %s: %w", op, err)
	}
	defer hresp.Body.Close()

	var resp Response
	if err := json.NewDecoder(hresp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("rpc: %s: status %d: %w", op, hresp.StatusCode, err)
	}
	if hresp.StatusCode == http.StatusOK {
		return &resp, nil
	}
	switch resp.Code {
	case CodeInsufficientBalance:
		return &resp, facade.ErrInsufficientBalance
	case CodeNoCustomHandler:
		return &resp, facade.ErrNoCustomHandler
	}
	msg := resp.Error
	if msg == "" {
		msg = http.StatusText(hresp.StatusCode)
	}
	return nil, fmt.Errorf("%w: %s: %d %s", ErrRemote, op, hresp.StatusCode, msg)
}

func (c *Client) ValidateAccessToken(ctx context.Context, accountID, token string) (bool, error) {
	resp, err := c.call(ctx, facade.OpValidateAccessToken, &Request{AccountID: accountID, AccessToken: token})
	if err != nil {
		return false, err
	}
	return resp.Valid, nil
}

func (c *Client) ReadCharacter(ctx context.Context, id string) (*entity.Character, bool, error) {
	resp, err := c.call(ctx, facade.OpReadCharacter, &Request{CharacterID: id})
	if err != nil || !resp.Found {
		return nil, false, err
	}
	ch, err := c.codec.Decode(resp.CharacterData)
	if err != nil {
		return nil, false, fmt.Errorf("rpc: decode character: %w", err)
	}
	return ch, true, nil
}

func (c *Client) UpdateCharacter(ctx context.Context, ch *entity.Character) (*entity.Character, error) {
	data, err := c.codec.Encode(ch)
	if err != nil {
		return nil, fmt.Errorf("rpc: encode character: %w", err)
	}
	resp, err := c.call(ctx, facade.OpUpdateCharacter, &Request{CharacterData: data})
	if err != nil {
		return nil, err
	}
	out, err := c.codec.Decode(resp.CharacterData)
	if err != nil {
		return nil, fmt.Errorf("rpc: decode character: %w", err)
	}
	return out, nil
}

// ChangeGold applies delta. With ErrInsufficientBalance the returned amount
// is the unchanged balance.
func (c *Client) ChangeGold(ctx context.Context, accountID string, delta int64) (int64, bool, error) {
	resp, err := c.call(ctx, facade.OpChangeGold, &Request{AccountID: accountID, Delta: delta})
	if resp == nil {
		return 0, false, err
	}
	return resp.Amount, resp.Found || errors.Is(err, facade.ErrInsufficientBalance), err
}

func (c *Client) Custom(ctx context.Context, t int32, payload []byte) ([]byte, error) {
	resp, err := c.call(ctx, facade.OpCustom, &Request{CustomType: t, Payload: payload})
	if err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

func (c *Client) ReadStorageItems(ctx context.Context, id entity.StorageID) (item.List, bool, error) {
	resp, err := c.call(ctx, facade.OpReadStorageItems, &Request{Storage: id})
	if err != nil {
		return nil, false, err
	}
	return resp.StorageItems, resp.Found, nil
}

func (c *Client) IncreaseStorageItems(ctx context.Context, req facade.IncreaseStorageItemsRequest) (facade.StorageItemsResponse, error) {
	in := req.Item
	resp, err := c.call(ctx, facade.OpIncreaseStorageItems, &Request{
		CharacterID: req.CharacterID,
		Storage:     req.Storage,
		MapName:     req.MapName,
		Item:        &in,
		Limits:      req.Limits,
	})
	if err != nil {
		return facade.StorageItemsResponse{}, err
	}
	return facade.StorageItemsResponse{Error: resp.StorageError, StorageItems: resp.StorageItems}, nil
}

func (c *Client) DecreaseStorageItems(ctx context.Context, req facade.DecreaseStorageItemsRequest) (facade.DecreaseStorageItemsResponse, error) {
	resp, err := c.call(ctx, facade.OpDecreaseStorageItems, &Request{
		CharacterID: req.CharacterID,
		Storage:     req.Storage,
		MapName:     req.MapName,
		DataID:      req.DataID,
		Amount:      req.Amount,
		Limits:      req.Limits,
	})
	if err != nil {
		return facade.DecreaseStorageItemsResponse{}, err
	}
	return facade.DecreaseStorageItemsResponse{
		Error:          resp.StorageError,
		StorageItems:   resp.StorageItems,
		DecreasedItems: resp.DecreasedItems,
	}, nil
}

func (c *Client) MoveItemToStorage(ctx context.Context, req facade.MoveItemToStorageRequest) (facade.MoveItemResponse, error) {
	resp, err := c.call(ctx, facade.OpMoveItemToStorage, &Request{
		CharacterID:     req.CharacterID,
		Storage:         req.Storage,
		MapName:         req.MapName,
		InventoryIndex:  req.InventoryIndex,
		InventoryAmount: req.InventoryAmount,
		StorageIndex:    req.StorageIndex,
	})
	return moveResponse(resp, err)
}

func (c *Client) MoveItemFromStorage(ctx context.Context, req facade.MoveItemFromStorageRequest) (facade.MoveItemResponse, error) {
	resp, err := c.call(ctx, facade.OpMoveItemFromStorage, &Request{
		CharacterID:    req.CharacterID,
		Storage:        req.Storage,
		MapName:        req.MapName,
		StorageIndex:   req.StorageIndex,
		StorageAmount:  req.StorageAmount,
		InventoryIndex: req.InventoryIndex,
	})
	return moveResponse(resp, err)
}

func (c *Client) SwapOrMergeStorageItem(ctx context.Context, req facade.SwapOrMergeStorageItemRequest) (facade.StorageItemsResponse, error) {
	resp, err := c.call(ctx, facade.OpSwapOrMergeStorageItem, &Request{
		CharacterID: req.CharacterID,
		Storage:     req.Storage,
		MapName:     req.MapName,
		FromIndex:   req.FromIndex,
		ToIndex:     req.ToIndex,
	})
	if err != nil {
		return facade.StorageItemsResponse{}, err
	}
	return facade.StorageItemsResponse{Error: resp.StorageError, StorageItems: resp.StorageItems}, nil
}

func moveResponse(resp *Response, err error) (facade.MoveItemResponse, error) {
	if err != nil {
		return facade.MoveItemResponse{}, err
	}
	return facade.MoveItemResponse{
		Error:          resp.StorageError,
		InventoryItems: resp.InventoryItems,
		StorageItems:   resp.StorageItems,
	}, nil
}

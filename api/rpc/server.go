package rpc

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/mmocache/codec"
	"github.com/kasuganosora/mmocache/entity"
	"github.com/kasuganosora/mmocache/facade"
	mw "github.com/kasuganosora/mmocache/middleware"
	"go.uber.org/zap"
)

type handlerFunc func(ctx context.Context, req *Request) (*Response, error)

// Server dispatches POST /rpc/:op to the facade.
type Server struct {
	svc      *facade.Service
	codec    codec.Codec[*entity.Character]
	logger   *zap.Logger
	handlers map[facade.OpCode]handlerFunc
}

// NewServer creates a Server. Character payloads are encoded with c.
func NewServer(svc *facade.Service, c codec.Codec[*entity.Character], logger *zap.Logger) *Server {
	s := &Server{svc: svc, codec: c, logger: logger}
	s.handlers = s.routes()
	return s
}

// Register mounts the rpc endpoints on r.
func (s *Server) Register(r gin.IRoutes) {
	r.POST("/rpc/:op", s.handle)
	r.GET("/rpc/stats", s.stats)
}

func (s *Server) handle(c *gin.Context) {
	n, err := strconv.Atoi(c.Param("op"))
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: "invalid op", Code: CodeBadRequest})
		return
	}
	op := facade.OpCode(n)
	h, ok := s.handlers[op]
	if !ok {
		c.JSON(http.StatusNotFound, Response{Error: "unknown op " + op.String(), Code: CodeUnknownOp})
		return
	}
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: err.Error(), Code: CodeBadRequest})
		return
	}
	resp, err := h(c.Request.Context(), &req)
	if err != nil {
		s.fail(c, op, resp, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) fail(c *gin.Context, op facade.OpCode, resp *Response, err error) {
	if resp == nil {
		resp = &Response{}
	}
	resp.Error = err.Error()
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, facade.ErrInsufficientBalance):
		status, resp.Code = http.StatusConflict, CodeInsufficientBalance
	case errors.Is(err, facade.ErrNoCustomHandler):
		status, resp.Code = http.StatusNotFound, CodeNoCustomHandler
	case errors.Is(err, errBadPayload):
		status, resp.Code = http.StatusBadRequest, CodeBadRequest
	default:
		resp.Code = CodeInternal
		resp.Error = "internal error"
		s.logger.Error("rpc failed",
			zap.Stringer("op", op),
			zap.String("trace_id", mw.GetTraceID(c)),
			zap.Error(err))
	}
	c.JSON(status, resp)
}

func (s *Server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.Stats())
}

var errBadPayload = errors.New("rpc: bad payload")

func (s *Server) decodeCharacter(data []byte) (*entity.Character, error) {
	if len(data) == 0 {
		return nil, errBadPayload
	}
	ch, err := s.codec.Decode(data)
	if err != nil || ch == nil {
		return nil, errBadPayload
	}
	return ch, nil
}

func (s *Server) characterResponse(ch *entity.Character, found bool) (*Response, error) {
	if !found {
		return &Response{}, nil
	}
	data, err := s.codec.Encode(ch)
	if err != nil {
		return nil, err
	}
	return &Response{Found: true, ID: ch.ID, CharacterData: data}, nil
}

func amount(v int64, found bool, err error) (*Response, error) {
	return &Response{Found: found, Amount: v}, err
}

func party(p *entity.Party, found bool, err error) (*Response, error) {
	if err != nil {
		return nil, err
	}
	return &Response{Found: found, Party: p}, nil
}

func guild(g *entity.Guild, found bool, err error) (*Response, error) {
	if err != nil {
		return nil, err
	}
	return &Response{Found: found, Guild: g}, nil
}

func socials(list []entity.SocialCharacter, err error) (*Response, error) {
	if err != nil {
		return nil, err
	}
	return &Response{Found: true, Characters: list}, nil
}

func count(n int64, err error) (*Response, error) {
	if err != nil {
		return nil, err
	}
	return &Response{Found: n > 0, Count: n}, nil
}

func done(err error) (*Response, error) {
	if err != nil {
		return nil, err
	}
	return &Response{Found: true}, nil
}

func (s *Server) routes() map[facade.OpCode]handlerFunc {
	svc := s.svc
	return map[facade.OpCode]handlerFunc{
		facade.OpValidateUserLogin: func(ctx context.Context, r *Request) (*Response, error) {
			id, err := svc.ValidateUserLogin(ctx, r.Username, r.Password)
			if err != nil {
				return nil, err
			}
			return &Response{Found: id != "", ID: id}, nil
		},
		facade.OpValidateAccessToken: func(ctx context.Context, r *Request) (*Response, error) {
			ok, err := svc.ValidateAccessToken(ctx, r.AccountID, r.AccessToken)
			if err != nil {
				return nil, err
			}
			return &Response{Found: true, Valid: ok}, nil
		},
		facade.OpGetUserLevel: func(ctx context.Context, r *Request) (*Response, error) {
			lvl, found, err := svc.GetUserLevel(ctx, r.AccountID)
			if err != nil {
				return nil, err
			}
			return &Response{Found: found, UserLevel: lvl}, nil
		},
		facade.OpGetGold: func(ctx context.Context, r *Request) (*Response, error) {
			return amount(svc.GetGold(ctx, r.AccountID))
		},
		facade.OpChangeGold: func(ctx context.Context, r *Request) (*Response, error) {
			return amount(svc.ChangeGold(ctx, r.AccountID, r.Delta))
		},
		facade.OpGetCash: func(ctx context.Context, r *Request) (*Response, error) {
			return amount(svc.GetCash(ctx, r.AccountID))
		},
		facade.OpChangeCash: func(ctx context.Context, r *Request) (*Response, error) {
			return amount(svc.ChangeCash(ctx, r.AccountID, r.Delta))
		},
		facade.OpUpdateAccessToken: func(ctx context.Context, r *Request) (*Response, error) {
			return done(svc.UpdateAccessToken(ctx, r.AccountID, r.AccessToken))
		},
		facade.OpCreateUserLogin: func(ctx context.Context, r *Request) (*Response, error) {
			id, err := svc.CreateUserLogin(ctx, r.Username, r.Password)
			if err != nil {
				return nil, err
			}
			return &Response{Found: true, ID: id}, nil
		},
		facade.OpFindUsername: func(ctx context.Context, r *Request) (*Response, error) {
			return count(svc.FindUsername(ctx, r.Username))
		},

		facade.OpCreateCharacter: func(ctx context.Context, r *Request) (*Response, error) {
			ch, err := s.decodeCharacter(r.CharacterData)
			if err != nil {
				return nil, err
			}
			ch, err = svc.CreateCharacter(ctx, r.AccountID, ch)
			if err != nil {
				return nil, err
			}
			return s.characterResponse(ch, true)
		},
		facade.OpReadCharacter: func(ctx context.Context, r *Request) (*Response, error) {
			ch, found, err := svc.ReadCharacter(ctx, r.CharacterID)
			if err != nil {
				return nil, err
			}
			return s.characterResponse(ch, found)
		},
		facade.OpReadCharacters: func(ctx context.Context, r *Request) (*Response, error) {
			list, err := svc.ReadCharacters(ctx, r.AccountID)
			if err != nil {
				return nil, err
			}
			resp := &Response{Found: true, CharactersData: make([][]byte, 0, len(list))}
			for _, ch := range list {
				data, err := s.codec.Encode(ch)
				if err != nil {
					return nil, err
				}
				resp.CharactersData = append(resp.CharactersData, data)
			}
			return resp, nil
		},
		facade.OpUpdateCharacter: func(ctx context.Context, r *Request) (*Response, error) {
			ch, err := s.decodeCharacter(r.CharacterData)
			if err != nil {
				return nil, err
			}
			ch, err = svc.UpdateCharacter(ctx, ch)
			if err != nil {
				return nil, err
			}
			return s.characterResponse(ch, true)
		},
		facade.OpDeleteCharacter: func(ctx context.Context, r *Request) (*Response, error) {
			return done(svc.DeleteCharacter(ctx, r.AccountID, r.CharacterID))
		},
		facade.OpFindCharacterName: func(ctx context.Context, r *Request) (*Response, error) {
			return count(svc.FindCharacterName(ctx, r.Name))
		},
		facade.OpFindCharacters: func(ctx context.Context, r *Request) (*Response, error) {
			return socials(svc.FindCharacters(ctx, r.Name))
		},
		facade.OpGetIDByCharacterName: func(ctx context.Context, r *Request) (*Response, error) {
			id, found, err := svc.GetIDByCharacterName(ctx, r.Name)
			return &Response{Found: found, ID: id}, err
		},
		facade.OpGetUserIDByCharacterName: func(ctx context.Context, r *Request) (*Response, error) {
			id, found, err := svc.GetUserIDByCharacterName(ctx, r.Name)
			return &Response{Found: found, ID: id}, err
		},

		facade.OpCreateFriend: func(ctx context.Context, r *Request) (*Response, error) {
			return socials(svc.CreateFriend(ctx, r.CharacterID, r.FriendID))
		},
		facade.OpDeleteFriend: func(ctx context.Context, r *Request) (*Response, error) {
			return socials(svc.DeleteFriend(ctx, r.CharacterID, r.FriendID))
		},
		facade.OpReadFriends: func(ctx context.Context, r *Request) (*Response, error) {
			return socials(svc.ReadFriends(ctx, r.CharacterID))
		},

		facade.OpCreateBuilding: func(ctx context.Context, r *Request) (*Response, error) {
			if r.Building == nil {
				return nil, errBadPayload
			}
			b, err := svc.CreateBuilding(ctx, r.MapName, *r.Building)
			if err != nil {
				return nil, err
			}
			return &Response{Found: true, Building: &b}, nil
		},
		facade.OpUpdateBuilding: func(ctx context.Context, r *Request) (*Response, error) {
			if r.Building == nil {
				return nil, errBadPayload
			}
			b, err := svc.UpdateBuilding(ctx, r.MapName, *r.Building)
			if err != nil {
				return nil, err
			}
			return &Response{Found: true, Building: &b}, nil
		},
		facade.OpDeleteBuilding: func(ctx context.Context, r *Request) (*Response, error) {
			return done(svc.DeleteBuilding(ctx, r.MapName, r.BuildingID))
		},
		facade.OpReadBuildings: func(ctx context.Context, r *Request) (*Response, error) {
			list, err := svc.ReadBuildings(ctx, r.MapName)
			if err != nil {
				return nil, err
			}
			return &Response{Found: true, Buildings: list}, nil
		},

		facade.OpCreateParty: func(ctx context.Context, r *Request) (*Response, error) {
			p, err := svc.CreateParty(ctx, r.ShareExp, r.ShareItem, r.LeaderID)
			return party(p, p != nil, err)
		},
		facade.OpUpdateParty: func(ctx context.Context, r *Request) (*Response, error) {
			return party(svc.UpdateParty(ctx, r.PartyID, r.ShareExp, r.ShareItem))
		},
		facade.OpUpdatePartyLeader: func(ctx context.Context, r *Request) (*Response, error) {
			return party(svc.UpdatePartyLeader(ctx, r.PartyID, r.LeaderID))
		},
		facade.OpDeleteParty: func(ctx context.Context, r *Request) (*Response, error) {
			return done(svc.DeleteParty(ctx, r.PartyID))
		},
		facade.OpUpdateCharacterParty: func(ctx context.Context, r *Request) (*Response, error) {
			if r.Member == nil {
				return nil, errBadPayload
			}
			return party(svc.UpdateCharacterParty(ctx, *r.Member, r.PartyID))
		},
		facade.OpClearCharacterParty: func(ctx context.Context, r *Request) (*Response, error) {
			ok, err := svc.ClearCharacterParty(ctx, r.CharacterID)
			return &Response{Found: ok}, err
		},
		facade.OpReadParty: func(ctx context.Context, r *Request) (*Response, error) {
			return party(svc.ReadParty(ctx, r.PartyID))
		},

		facade.OpCreateGuild: func(ctx context.Context, r *Request) (*Response, error) {
			g, err := svc.CreateGuild(ctx, r.Name, r.LeaderID)
			return guild(g, g != nil, err)
		},
		facade.OpUpdateGuildLeader: func(ctx context.Context, r *Request) (*Response, error) {
			return guild(svc.UpdateGuildLeader(ctx, r.GuildID, r.LeaderID))
		},
		facade.OpUpdateGuildMessage: func(ctx context.Context, r *Request) (*Response, error) {
			return guild(svc.UpdateGuildMessage(ctx, r.GuildID, r.Message))
		},
		facade.OpUpdateGuildRole: func(ctx context.Context, r *Request) (*Response, error) {
			if r.GuildRole == nil {
				return nil, errBadPayload
			}
			return guild(svc.UpdateGuildRole(ctx, r.GuildID, r.RoleIndex, *r.GuildRole))
		},
		facade.OpUpdateGuildMemberRole: func(ctx context.Context, r *Request) (*Response, error) {
			return guild(svc.UpdateGuildMemberRole(ctx, r.GuildID, r.MemberID, r.Role))
		},
		facade.OpDeleteGuild: func(ctx context.Context, r *Request) (*Response, error) {
			return done(svc.DeleteGuild(ctx, r.GuildID))
		},
		facade.OpUpdateCharacterGuild: func(ctx context.Context, r *Request) (*Response, error) {
			if r.Member == nil {
				return nil, errBadPayload
			}
			return guild(svc.UpdateCharacterGuild(ctx, *r.Member, r.GuildID, r.Role))
		},
		facade.OpClearCharacterGuild: func(ctx context.Context, r *Request) (*Response, error) {
			ok, err := svc.ClearCharacterGuild(ctx, r.CharacterID)
			return &Response{Found: ok}, err
		},
		facade.OpFindGuildName: func(ctx context.Context, r *Request) (*Response, error) {
			return count(svc.FindGuildName(ctx, r.Name))
		},
		facade.OpReadGuild: func(ctx context.Context, r *Request) (*Response, error) {
			return guild(svc.ReadGuild(ctx, r.GuildID))
		},
		facade.OpIncreaseGuildExp: func(ctx context.Context, r *Request) (*Response, error) {
			return guild(svc.IncreaseGuildExp(ctx, r.GuildID, r.Exp))
		},
		facade.OpAddGuildSkill: func(ctx context.Context, r *Request) (*Response, error) {
			return guild(svc.AddGuildSkill(ctx, r.GuildID, r.SkillID))
		},
		facade.OpGetGuildGold: func(ctx context.Context, r *Request) (*Response, error) {
			return amount(svc.GetGuildGold(ctx, r.GuildID))
		},
		facade.OpChangeGuildGold: func(ctx context.Context, r *Request) (*Response, error) {
			return amount(svc.ChangeGuildGold(ctx, r.GuildID, r.Delta))
		},

		facade.OpReadStorageItems: func(ctx context.Context, r *Request) (*Response, error) {
			items, found, err := svc.ReadStorageItems(ctx, r.Storage)
			if err != nil {
				return nil, err
			}
			return &Response{Found: found, StorageItems: items}, nil
		},
		facade.OpMoveItemToStorage: func(ctx context.Context, r *Request) (*Response, error) {
			resp, err := svc.MoveItemToStorage(ctx, facade.MoveItemToStorageRequest{
				CharacterID:     r.CharacterID,
				Storage:         r.Storage,
				MapName:         r.MapName,
				InventoryIndex:  r.InventoryIndex,
				InventoryAmount: r.InventoryAmount,
				StorageIndex:    r.StorageIndex,
			})
			return moved(resp, err)
		},
		facade.OpMoveItemFromStorage: func(ctx context.Context, r *Request) (*Response, error) {
			resp, err := svc.MoveItemFromStorage(ctx, facade.MoveItemFromStorageRequest{
				CharacterID:    r.CharacterID,
				Storage:        r.Storage,
				MapName:        r.MapName,
				StorageIndex:   r.StorageIndex,
				StorageAmount:  r.StorageAmount,
				InventoryIndex: r.InventoryIndex,
			})
			return moved(resp, err)
		},
		facade.OpSwapOrMergeStorageItem: func(ctx context.Context, r *Request) (*Response, error) {
			resp, err := svc.SwapOrMergeStorageItem(ctx, facade.SwapOrMergeStorageItemRequest{
				CharacterID: r.CharacterID,
				Storage:     r.Storage,
				MapName:     r.MapName,
				FromIndex:   r.FromIndex,
				ToIndex:     r.ToIndex,
			})
			return storageItems(resp, err)
		},
		facade.OpIncreaseStorageItems: func(ctx context.Context, r *Request) (*Response, error) {
			if r.Item == nil {
				return nil, errBadPayload
			}
			resp, err := svc.IncreaseStorageItems(ctx, facade.IncreaseStorageItemsRequest{
				CharacterID: r.CharacterID,
				Storage:     r.Storage,
				MapName:     r.MapName,
				Item:        *r.Item,
				Limits:      r.Limits,
			})
			return storageItems(resp, err)
		},
		facade.OpDecreaseStorageItems: func(ctx context.Context, r *Request) (*Response, error) {
			resp, err := svc.DecreaseStorageItems(ctx, facade.DecreaseStorageItemsRequest{
				CharacterID: r.CharacterID,
				Storage:     r.Storage,
				MapName:     r.MapName,
				DataID:      r.DataID,
				Amount:      r.Amount,
				Limits:      r.Limits,
			})
			if err != nil {
				return nil, err
			}
			return &Response{
				Found:          true,
				StorageError:   resp.Error,
				StorageItems:   resp.StorageItems,
				DecreasedItems: resp.DecreasedItems,
			}, nil
		},

		facade.OpCustom: func(ctx context.Context, r *Request) (*Response, error) {
			out, err := svc.Custom(ctx, r.CustomType, r.Payload)
			if err != nil {
				return nil, err
			}
			return &Response{Found: true, Payload: out}, nil
		},
	}
}

func moved(resp facade.MoveItemResponse, err error) (*Response, error) {
	if err != nil {
		return nil, err
	}
	return &Response{
		Found:          true,
		StorageError:   resp.Error,
		InventoryItems: resp.InventoryItems,
		StorageItems:   resp.StorageItems,
	}, nil
}

func storageItems(resp facade.StorageItemsResponse, err error) (*Response, error) {
	if err != nil {
		return nil, err
	}
	return &Response{Found: true, StorageError: resp.Error, StorageItems: resp.StorageItems}, nil
}

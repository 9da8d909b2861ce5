package guild

import "github.com/kasuganosora/mmocache/entity"

// Rules computes guild progression. Implementations must not mutate the
// guild they are given.
type Rules interface {
	// IncreaseExp returns g with exp added and any level-ups applied.
	IncreaseExp(g *entity.Guild, exp int64) *entity.Guild
	// MaxSkillLevel is the highest learnable level of a guild skill.
	// Zero means unbounded.
	MaxSkillLevel(skillID int) int
}

// Config is the table-driven progression setting.
type Config struct {
	// ExpTable[i] is the exp needed to advance from level i+1 to i+2.
	// The guild stops levelling at len(ExpTable)+1.
	ExpTable            []int64     `mapstructure:"exp_table"`
	SkillPointsPerLevel int         `mapstructure:"skill_points_per_level"`
	MaxSkillLevel       int         `mapstructure:"max_skill_level"`
	SkillMaxLevels      map[int]int `mapstructure:"skill_max_levels"`
}

// TableRules implements Rules from a Config.
type TableRules struct {
	cfg Config
}

// NewTableRules creates TableRules. The exp table is copied.
func NewTableRules(cfg Config) *TableRules {
	cfg.ExpTable = append([]int64(nil), cfg.ExpTable...)
	return &TableRules{cfg: cfg}
}

func (r *TableRules) IncreaseExp(g *entity.Guild, exp int64) *entity.Guild {
	out := g.Clone()
	if exp <= 0 {
		return out
	}
	if out.Level < 1 {
		out.Level = 1
	}
	out.Exp += exp
	for out.Level-1 < len(r.cfg.ExpTable) {
		need := r.cfg.ExpTable[out.Level-1]
		if need <= 0 || out.Exp < need {
			break
		}
		out.Exp -= need
		out.Level++
		out.SkillPoints += r.cfg.SkillPointsPerLevel
	}
	return out
}

func (r *TableRules) MaxSkillLevel(skillID int) int {
	if lvl, ok := r.cfg.SkillMaxLevels[skillID]; ok {
		return lvl
	}
	return r.cfg.MaxSkillLevel
}

// NextLevelExp returns the exp needed to leave level, or 0 at the cap.
func (r *TableRules) NextLevelExp(level int) int64 {
	if level < 1 || level-1 >= len(r.cfg.ExpTable) {
		return 0
	}
	return r.cfg.ExpTable[level-1]
}

package store

import (
	"context"
	"errors"

	"github.com/kasuganosora/mmocache/entity"
	"github.com/kasuganosora/mmocache/game/item"
	"github.com/kasuganosora/mmocache/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ---- buildings ----

func (s *GormStore) CreateBuilding(ctx context.Context, mapName string, b entity.Building) error {
	row := buildingRow(mapName, b)
	return wrap("create building", s.conn(ctx).Create(&row).Error)
}

func (s *GormStore) UpdateBuilding(ctx context.Context, mapName string, b entity.Building) error {
	row := buildingRow(mapName, b)
	return wrap("update building", s.conn(ctx).Model(&model.Building{ID: b.ID}).
		Select("*").Omit("id").Updates(&row).Error)
}

func (s *GormStore) DeleteBuilding(ctx context.Context, mapName, id string) error {
	return wrap("delete building", s.conn(ctx).
		Where("id = ? AND map_name = ?", id, mapName).Delete(&model.Building{}).Error)
}

func (s *GormStore) ReadBuildings(ctx context.Context, mapName string) ([]entity.Building, error) {
	var rows []model.Building
	if err := s.conn(ctx).Where("map_name = ?", mapName).Find(&rows).Error; err != nil {
		return nil, wrap("read buildings", err)
	}
	out := make([]entity.Building, len(rows))
	for i := range rows {
		out[i] = buildingEntity(&rows[i])
	}
	return out, nil
}

// ---- storage ----

func (s *GormStore) ReadStorageItems(ctx context.Context, id entity.StorageID) (item.List, error) {
	var row model.StorageItems
	err := s.conn(ctx).
		Where("storage_type = ? AND owner_id = ?", uint8(id.Type), id.OwnerID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return item.List{}, nil
	}
	if err != nil {
		return nil, wrap("read storage items", err)
	}
	return item.List(row.Items).Clone(), nil
}

func (s *GormStore) UpdateStorageItems(ctx context.Context, id entity.StorageID, items item.List) error {
	row := model.StorageItems{
		StorageType: uint8(id.Type),
		OwnerID:     id.OwnerID,
		Items:       datatypes.JSONSlice[item.Slot](items.Clone()),
	}
	return wrap("update storage items", s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "storage_type"}, {Name: "owner_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"items", "updated_at"}),
	}).Create(&row).Error)
}

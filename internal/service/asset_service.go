package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/forge3d/realtime/internal/model"
)

// AssetService stores asset records and their workflow stage in Redis.
type AssetService struct {
	redis *redis.Client
}

func NewAssetService(redisClient *redis.Client) *AssetService {
	return &AssetService{redis: redisClient}
}

// CreateAsset registers a new asset at the uploaded stage.
func (s *AssetService) CreateAsset(ctx context.Context, name string) (*model.Asset, error) {
	now := time.Now()
	asset := &model.Asset{
		ID:            uuid.New().String(),
		Name:          name,
		WorkflowStage: model.BackendStageUploaded,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.saveAsset(ctx, asset); err != nil {
		return nil, err
	}
	return asset, nil
}

// GetAsset fetches one asset record.
func (s *AssetService) GetAsset(ctx context.Context, assetID string) (*model.Asset, error) {
	data, err := s.redis.Get(ctx, fmt.Sprintf("asset:%s", assetID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("asset not found")
		}
		return nil, err
	}

	var asset model.Asset
	if err := json.Unmarshal(data, &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

// SetStage moves an asset to a backend workflow stage.
func (s *AssetService) SetStage(ctx context.Context, assetID, stage string) (*model.Asset, error) {
	asset, err := s.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	asset.WorkflowStage = stage
	return asset, s.saveAsset(ctx, asset)
}

// MarkMesh records a generated mesh on the asset.
func (s *AssetService) MarkMesh(ctx context.Context, assetID, meshPath string) error {
	asset, err := s.GetAsset(ctx, assetID)
	if err != nil {
		return err
	}
	asset.HasMesh = true
	asset.MeshPath = meshPath
	asset.WorkflowStage = model.BackendStageMeshGenerated
	return s.saveAsset(ctx, asset)
}

// MarkTextured records a textured mesh on the asset.
func (s *AssetService) MarkTextured(ctx context.Context, assetID, texturedPath string) error {
	asset, err := s.GetAsset(ctx, assetID)
	if err != nil {
		return err
	}
	asset.HasTexture = true
	asset.TexturedPath = texturedPath
	asset.WorkflowStage = model.BackendStageTextured
	return s.saveAsset(ctx, asset)
}

// MarkRigged records a rigged mesh on the asset.
func (s *AssetService) MarkRigged(ctx context.Context, assetID, riggedPath string) error {
	asset, err := s.GetAsset(ctx, assetID)
	if err != nil {
		return err
	}
	asset.IsRigged = true
	asset.RiggedPath = riggedPath
	asset.WorkflowStage = model.BackendStageRigged
	return s.saveAsset(ctx, asset)
}

func (s *AssetService) saveAsset(ctx context.Context, asset *model.Asset) error {
	asset.UpdatedAt = time.Now()
	data, err := json.Marshal(asset)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, fmt.Sprintf("asset:%s", asset.ID), data, 0).Err()
}

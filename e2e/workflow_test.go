package e2e

import (
	"context"
	"fmt"
	"net/http"
	"testing"
)

func TestWorkflowApprove_MeshStage(t *testing.T) {
	skipIfNoRedis(t)
	ta := setupApp(t)

	asset, err := ta.assetService.CreateAsset(context.Background(), "statue")
	if err != nil {
		t.Fatalf("failed to seed asset: %v", err)
	}
	if err := ta.assetService.MarkMesh(context.Background(), asset.ID, "/meshes/statue.glb"); err != nil {
		t.Fatalf("failed to mark mesh: %v", err)
	}

	resp, err := doRequest(ta.app, http.MethodPost, fmt.Sprintf("/api/workflow/%s/approve", asset.ID), "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["approved_stage"] != "mesh_approved" {
		t.Errorf("expected approved_stage 'mesh_approved', got %v", result["approved_stage"])
	}
	if result["next_stage"] != "texture" {
		t.Errorf("expected next_stage 'texture', got %v", result["next_stage"])
	}

	got, err := ta.assetService.GetAsset(context.Background(), asset.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.WorkflowStage != "mesh_approved" {
		t.Errorf("asset stage not persisted, got %s", got.WorkflowStage)
	}
}

func TestWorkflowApprove_UploadedStageRejected(t *testing.T) {
	skipIfNoRedis(t)
	ta := setupApp(t)

	asset, err := ta.assetService.CreateAsset(context.Background(), "raw upload")
	if err != nil {
		t.Fatalf("failed to seed asset: %v", err)
	}

	resp, err := doRequest(ta.app, http.MethodPost, fmt.Sprintf("/api/workflow/%s/approve", asset.ID), "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusConflict)
}

func TestWorkflowSkipToExport(t *testing.T) {
	skipIfNoRedis(t)
	ta := setupApp(t)

	asset, err := ta.assetService.CreateAsset(context.Background(), "quick export")
	if err != nil {
		t.Fatalf("failed to seed asset: %v", err)
	}
	if err := ta.assetService.MarkMesh(context.Background(), asset.ID, "/meshes/q.glb"); err != nil {
		t.Fatal(err)
	}

	resp, err := doRequest(ta.app, http.MethodPost, fmt.Sprintf("/api/workflow/%s/skip-to-export", asset.ID), "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["next_stage"] != "export" {
		t.Errorf("expected next_stage 'export', got %v", result["next_stage"])
	}
	skipped, ok := result["skipped_stages"].([]interface{})
	if !ok || len(skipped) != 2 || skipped[0] != "texture" || skipped[1] != "rigging" {
		t.Errorf("expected skipped [texture rigging], got %v", result["skipped_stages"])
	}
}

func TestWorkflowAdvance(t *testing.T) {
	skipIfNoRedis(t)
	ta := setupApp(t)

	asset, err := ta.assetService.CreateAsset(context.Background(), "redo target")
	if err != nil {
		t.Fatalf("failed to seed asset: %v", err)
	}

	body := `{"to_stage": "mesh_generated"}`
	resp, err := doRequest(ta.app, http.MethodPost, fmt.Sprintf("/api/workflow/%s/advance", asset.ID), body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	// Unknown stage names are rejected.
	body = `{"to_stage": "chrome_plated"}`
	resp, err = doRequest(ta.app, http.MethodPost, fmt.Sprintf("/api/workflow/%s/advance", asset.ID), body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestGetAsset(t *testing.T) {
	skipIfNoRedis(t)
	ta := setupApp(t)

	asset, err := ta.assetService.CreateAsset(context.Background(), "lookup")
	if err != nil {
		t.Fatalf("failed to seed asset: %v", err)
	}

	resp, err := doRequest(ta.app, http.MethodGet, fmt.Sprintf("/api/assets/%s", asset.ID), "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["id"] != asset.ID || result["workflow_stage"] != "uploaded" {
		t.Errorf("unexpected asset payload: %v", result)
	}
}

func TestPipelineStatus(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodGet, "/api/pipeline/status", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["vram_total_gb"] != float64(24) {
		t.Errorf("expected vram_total_gb 24, got %v", result["vram_total_gb"])
	}
	if result["shape_loaded"] != false {
		t.Errorf("expected shape_loaded false, got %v", result["shape_loaded"])
	}
}

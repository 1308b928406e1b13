package e2e

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
)

func TestGenerate_TextTo3D(t *testing.T) {
	skipIfNoRedis(t)
	ta := setupApp(t)

	body := `{
		"type": "text_to_3d",
		"name": "garden gnome",
		"prompt": "a ceramic garden gnome with a fishing rod"
	}`

	resp, err := doRequest(ta.app, http.MethodPost, "/api/generate", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusAccepted)

	result := parseJSON(t, resp)
	if result["job_id"] == nil || result["job_id"] == "" {
		t.Error("expected 'job_id' in response")
	}
	if result["asset_id"] == nil || result["asset_id"] == "" {
		t.Error("expected 'asset_id' in response")
	}
	if result["status"] != "queued" {
		t.Errorf("expected status 'queued', got %v", result["status"])
	}
}

func TestGenerate_MissingPrompt(t *testing.T) {
	ta := setupApp(t)

	body := `{"type": "text_to_3d"}`

	resp, err := doRequest(ta.app, http.MethodPost, "/api/generate", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}

func TestGenerate_UnknownType(t *testing.T) {
	ta := setupApp(t)

	body := `{"type": "thought_to_3d", "prompt": "a dream"}`

	resp, err := doRequest(ta.app, http.MethodPost, "/api/generate", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}

func TestJobStatus_AfterSubmit(t *testing.T) {
	skipIfNoRedis(t)
	ta := setupApp(t)

	body := `{"type": "text_to_3d", "prompt": "a wooden stool"}`
	resp, err := doRequest(ta.app, http.MethodPost, "/api/generate", body)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	jobID := parseJSON(t, resp)["job_id"].(string)

	resp, err = doRequest(ta.app, http.MethodGet, fmt.Sprintf("/api/jobs/%s", jobID), "")
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["job_id"] != jobID {
		t.Errorf("expected job_id %s, got %v", jobID, result["job_id"])
	}
	// No worker runs in these tests, so the job stays queued.
	if result["status"] != "queued" {
		t.Errorf("expected status 'queued', got %v", result["status"])
	}
}

func TestJobStatus_NotFound(t *testing.T) {
	skipIfNoRedis(t)
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodGet, "/api/jobs/"+uuid.New().String(), "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)
}

func TestCancel_QueuedJob(t *testing.T) {
	skipIfNoRedis(t)
	ta := setupApp(t)

	body := `{"type": "text_to_3d", "prompt": "a clay teapot"}`
	resp, err := doRequest(ta.app, http.MethodPost, "/api/generate", body)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	jobID := parseJSON(t, resp)["job_id"].(string)

	resp, err = doRequest(ta.app, http.MethodPost, fmt.Sprintf("/api/jobs/%s/cancel", jobID), "")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["success"] != true || result["status"] != "cancelled" {
		t.Errorf("unexpected cancel response: %v", result)
	}

	// A second cancel hits the terminal guard.
	resp, err = doRequest(ta.app, http.MethodPost, fmt.Sprintf("/api/jobs/%s/cancel", jobID), "")
	if err != nil {
		t.Fatalf("second cancel failed: %v", err)
	}
	assertStatus(t, resp, http.StatusConflict)
}

func TestRig_UnriggableAsset(t *testing.T) {
	skipIfNoRedis(t)
	ta := setupApp(t)

	// Fresh asset with no mesh yet.
	asset, err := ta.assetService.CreateAsset(context.Background(), "unmeshed")
	if err != nil {
		t.Fatalf("failed to seed asset: %v", err)
	}

	body := fmt.Sprintf(`{"asset_id": "%s", "character_type": "auto"}`, asset.ID)
	resp, err := doRequest(ta.app, http.MethodPost, "/api/rig", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusConflict)
}

func TestRig_MeshedAsset(t *testing.T) {
	skipIfNoRedis(t)
	ta := setupApp(t)

	asset, err := ta.assetService.CreateAsset(context.Background(), "meshed")
	if err != nil {
		t.Fatalf("failed to seed asset: %v", err)
	}
	if err := ta.assetService.MarkMesh(context.Background(), asset.ID, "/meshes/test.glb"); err != nil {
		t.Fatalf("failed to mark mesh: %v", err)
	}

	body := fmt.Sprintf(`{"asset_id": "%s", "character_type": "quadruped"}`, asset.ID)
	resp, err := doRequest(ta.app, http.MethodPost, "/api/rig", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)

	result := parseJSON(t, resp)
	if result["asset_id"] != asset.ID || result["status"] != "queued" {
		t.Errorf("unexpected rig response: %v", result)
	}
}

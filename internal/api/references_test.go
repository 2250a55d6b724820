package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/posture.report/internal/testutil"
)

func TestReferenceLibrary(t *testing.T) {
	env := newTestEnv(t, true)

	rec, resp := env.do(t, http.MethodGet, "/api/references", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Empty(t, resp["references"])

	rec, resp = env.do(t, http.MethodPost, "/api/references", map[string]interface{}{
		"name":               "bird-dog",
		"condition":          "escoliosis lumbar",
		"landmarks_sequence": neutralFrames(6),
		"ref_fps":            2,
	})
	testutil.AssertStatusCode(t, rec.Code, http.StatusCreated)
	id, _ := resp["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, float64(6), resp["frames"])

	rec, resp = env.do(t, http.MethodGet, "/api/references/"+id, nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "bird-dog", resp["name"])
	frames, _ := resp["landmarks_sequence"].([]interface{})
	assert.Len(t, frames, 6)

	rec, resp = env.do(t, http.MethodGet, "/api/references/"+id+"?download=1", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, `attachment; filename="bird-dog.json"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, float64(2), resp["ref_fps"])
	assert.NotContains(t, resp, "id", "downloads carry the sequence wire format only")

	rec, resp = env.do(t, http.MethodPost, "/api/references/"+id+"/activate", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, true, resp["success"])
	info, ok := env.sess.Reference()
	require.True(t, ok)
	assert.Equal(t, id, info.ID)
	assert.Equal(t, 6, info.Frames)

	rec, _ = env.do(t, http.MethodDelete, "/api/references/"+id, nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	rec, _ = env.do(t, http.MethodGet, "/api/references/"+id, nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
	rec, _ = env.do(t, http.MethodPost, "/api/references/"+id+"/activate", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}

func TestSaveAndLoadReference(t *testing.T) {
	env := newTestEnv(t, true)

	rec, resp := env.do(t, http.MethodPost, "/api/set_reference_landmarks", map[string]interface{}{
		"landmarks_sequence": neutralFrames(3),
		"name":               "plank",
		"save":               true,
	})
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	id, _ := resp["id"].(string)
	require.NotEmpty(t, id)

	info, ok := env.sess.Reference()
	require.True(t, ok)
	assert.Equal(t, id, info.ID)

	_, resp = env.do(t, http.MethodGet, "/api/references", nil)
	refs, _ := resp["references"].([]interface{})
	assert.Len(t, refs, 1)

	rec, _ = env.do(t, http.MethodPost, "/api/references", map[string]interface{}{
		"landmarks_sequence": neutralFrames(3),
	})
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestReferencesWithoutStore(t *testing.T) {
	env := newTestEnv(t, false)
	rec, resp := env.do(t, http.MethodGet, "/api/references", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusServiceUnavailable)
	assert.Equal(t, false, resp["success"])
}

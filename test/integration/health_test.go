//go:build integration

package integration

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/Vishesh-Tomer/school-erp/test/integration/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth_ReportsBackingStores(t *testing.T) {
	env := testutil.NewTestEnv(t)

	resp := env.GET("/health")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "up", body["database"])
	assert.Equal(t, "up", body["redis"])
}

func TestHealth_RedisOutageIsNonFatal(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.Redis.Close()

	resp := env.GET("/health")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "down", body["redis"])
}

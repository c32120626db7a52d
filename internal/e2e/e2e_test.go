package e2e

import (
	"net/http"
	"strings"
	"sync"
	"testing"

	"cerebro/internal/routespec"
	"cerebro/pkg/types"
)

const manifestV1 = `{"nodes": {
  "model.cerebro.api_execution_gas_used_daily": {
    "name": "api_execution_gas_used_daily", "resource_type": "model", "schema": "main", "alias": "gas",
    "description": "Gas used per day",
    "tags": ["production", "execution", "api:gas_used", "granularity:daily"],
    "columns": {"date": {"data_type": "Date"}, "address": {"data_type": "String"}, "value": {"data_type": "UInt64"}}
  },
  "model.cerebro.api_consensus_validators": {
    "name": "api_consensus_validators", "resource_type": "model", "schema": "main", "alias": "validators",
    "tags": ["production", "consensus", "tier1", "api:validators"],
    "columns": {"status": {"data_type": "String"}}
  },
  "model.cerebro.stg_blocks": {"name": "stg_blocks", "resource_type": "model", "tags": ["staging"]}
}}`

// manifestV2 drops the validators model.
const manifestV2 = `{"nodes": {
  "model.cerebro.api_execution_gas_used_daily": {
    "name": "api_execution_gas_used_daily", "resource_type": "model", "schema": "main", "alias": "gas",
    "tags": ["production", "execution", "api:gas_used", "granularity:daily"],
    "columns": {"date": {"data_type": "Date"}, "address": {"data_type": "String"}, "value": {"data_type": "UInt64"}}
  }
}}`

var seed = []string{
	`CREATE TABLE gas (date TEXT, address TEXT, value INTEGER)`,
	`INSERT INTO gas VALUES ('2024-01-01','0xAAA1',10),('2024-01-02','0xbbb2',20),('2024-01-03','0xaaa3',30)`,
	`CREATE TABLE validators (status TEXT)`,
	`INSERT INTO validators VALUES ('active'),('exited')`,
}

func TestE2E_ServeQueryAndRefresh(t *testing.T) {
	host := newManifestHost(t, manifestV1)
	st := newStack(t, host.srv.URL, newWarehouse(t, "e2e_flow", seed...), routespec.Overrides{})
	base := st.srv.URL

	// generated route with filters, default ordering and LIKE wrapping
	resp, body := call(t, http.MethodGet, base+"/v1/execution/gas_used/daily?start_date=2024-01-02&address=aaa", publicKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("gas status=%d body=%s", resp.StatusCode, string(body))
	}
	rows := decode[[]map[string]any](t, body)
	if len(rows) != 1 || rows[0]["address"] != "0xaaa3" {
		t.Fatalf("unexpected rows: %v", rows)
	}

	// tier1 route rejects tier0 callers
	resp, _ = call(t, http.MethodGet, base+"/v1/consensus/validators", publicKey)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("validators tier0 status=%d", resp.StatusCode)
	}
	resp, body = call(t, http.MethodGet, base+"/v1/consensus/validators?status=active", partnerKey)
	if resp.StatusCode != http.StatusOK || len(decode[[]map[string]any](t, body)) != 1 {
		t.Fatalf("validators status=%d body=%s", resp.StatusCode, string(body))
	}

	// unchanged refresh keeps the generation
	resp, body = call(t, http.MethodPost, base+"/v1/system/manifest/refresh", adminKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status=%d", resp.StatusCode)
	}
	res := decode[types.RefreshResponse](t, body)
	if res.Status != types.RefreshUnchanged || res.Generation != 1 || res.Models != 3 {
		t.Fatalf("unexpected refresh: %+v", res)
	}

	// changed manifest removes the dropped route
	host.body.Store(manifestV2)
	_, body = call(t, http.MethodPost, base+"/v1/system/manifest/refresh", adminKey)
	res = decode[types.RefreshResponse](t, body)
	if res.Status != types.RefreshReloaded || res.Generation != 2 || res.Routes != 1 {
		t.Fatalf("unexpected refresh: %+v", res)
	}
	resp, _ = call(t, http.MethodGet, base+"/v1/consensus/validators", partnerKey)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("dropped route status=%d", resp.StatusCode)
	}

	// docs follow the generation
	_, body = call(t, http.MethodGet, base+"/openapi.json", "")
	if strings.Contains(string(body), "/consensus/validators") || !strings.Contains(string(body), "/execution/gas_used/daily") {
		t.Fatalf("stale docs: %s", string(body))
	}

	// status reflects the live table
	_, body = call(t, http.MethodGet, base+"/status", "")
	status := decode[types.StatusResponse](t, body)
	if status.Generation != 2 || status.Routes != 1 || status.ManifestSource != "url" {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestE2E_ManualEndpointAndOverride(t *testing.T) {
	host := newManifestHost(t, manifestV1)
	ov := routespec.Overrides{Endpoints: []routespec.Override{
		{Model: "api_execution_gas_used_daily", Path: "/gas", Tier: "tier1", OrderBy: "value ASC",
			Parameters: []routespec.Param{{Name: "min_value", Column: "value", Operator: ">=", Type: "string"}}},
		{Model: "validators", Path: "/raw/validators"},
	}}
	st := newStack(t, host.srv.URL, newWarehouse(t, "e2e_manual", seed...), ov)
	base := st.srv.URL

	resp, _ := call(t, http.MethodGet, base+"/v1/execution/gas_used/daily", publicKey)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("auto path should be replaced, status=%d", resp.StatusCode)
	}
	resp, body := call(t, http.MethodGet, base+"/v1/gas?min_value=15", partnerKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("override status=%d body=%s", resp.StatusCode, string(body))
	}
	rows := decode[[]map[string]any](t, body)
	if len(rows) != 2 || rows[0]["value"].(float64) != 20 {
		t.Fatalf("unexpected rows: %v", rows)
	}

	// manual model missing from the manifest queries the bare table name
	resp, body = call(t, http.MethodGet, base+"/v1/raw/validators?limit=1", publicKey)
	if resp.StatusCode != http.StatusOK || len(decode[[]map[string]any](t, body)) != 1 {
		t.Fatalf("manual status=%d body=%s", resp.StatusCode, string(body))
	}

	// system listing is admin only
	resp, _ = call(t, http.MethodGet, base+"/v1/system/routes", partnerKey)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("routes listing status=%d", resp.StatusCode)
	}
	_, body = call(t, http.MethodGet, base+"/v1/system/routes", adminKey)
	listing := decode[types.RoutesResponse](t, body)
	if len(listing.Routes) != 3 {
		t.Fatalf("unexpected listing: %+v", listing)
	}
}

// Requests racing a rebuild are routed by exactly one generation: the route
// either exists with its full handler or is absent.
func TestE2E_RequestsDuringRefreshSeeWholeGenerations(t *testing.T) {
	host := newManifestHost(t, manifestV1)
	st := newStack(t, host.srv.URL, newWarehouse(t, "e2e_race", seed...), routespec.Overrides{})
	base := st.srv.URL

	var wg sync.WaitGroup
	errs := make(chan string, 80)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				req, _ := http.NewRequest(http.MethodGet, base+"/v1/consensus/validators", nil)
				req.Header.Set("X-API-Key", partnerKey)
				resp, err := http.DefaultClient.Do(req)
				if err != nil {
					errs <- err.Error()
					return
				}
				_ = resp.Body.Close()
				if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
					errs <- resp.Status
				}
			}
		}()
	}
	for i := 0; i < 4; i++ {
		if i%2 == 0 {
			host.body.Store(manifestV2)
		} else {
			host.body.Store(manifestV1)
		}
		st.mgr.Refresh(t.Context())
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Fatalf("unexpected response during refresh: %s", e)
	}
	if g := st.mgr.Table().Generation; g != 5 {
		t.Fatalf("generation=%d want 5", g)
	}
}

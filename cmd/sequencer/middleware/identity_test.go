package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/mpas/sequencer/cmd/sequencer/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractIdentity(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		headers map[string]string
		want    models.Identity
	}{
		{
			name:   "query parameters",
			target: "/?username=alice&clientid=pc-1",
			want:   models.Identity{Username: "alice", ClientID: "pc-1"},
		},
		{
			name:   "short aliases",
			target: "/?user=bob&client=pc-2",
			want:   models.Identity{Username: "bob", ClientID: "pc-2"},
		},
		{
			name:    "headers",
			target:  "/",
			headers: map[string]string{"X-User-ID": "carol", "X-Client-ID": "pc-3"},
			want:    models.Identity{Username: "carol", ClientID: "pc-3"},
		},
		{
			name:    "query wins over header",
			target:  "/?username=alice",
			headers: map[string]string{"X-User-ID": "carol"},
			want:    models.Identity{Username: "alice"},
		},
		{
			name:   "nothing supplied",
			target: "/",
			want:   models.Identity{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			var got models.Identity
			h := ExtractIdentity()(func(c echo.Context) error {
				got = GetIdentity(c)
				return nil
			})

			require.NoError(t, h(c))
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Username, GetUsername(c))
		})
	}
}

package inspector_test

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector"
	"github.com/wadakatu/laravel-spectrum-sub013/inspector/graph"
)

func TestFactory_GetInspector(t *testing.T) {
	tests := []struct {
		name      string
		filename  string
		wantErr   bool
		inspector string
	}{
		{
			name:      "PHP file",
			filename:  "app/Http/Resources/UserResource.php",
			inspector: "php",
		},
		{
			name:      "upper case extension",
			filename:  "routes/API.PHP",
			inspector: "php",
		},
		{
			name:     "Unsupported file",
			filename: "test.go",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			insp, err := inspector.NewFactory().GetInspector(tt.filename)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, insp)
			assert.True(t, strings.Contains(reflect.TypeOf(insp).String(), tt.inspector))
		})
	}
}

func TestFactory_InspectSource(t *testing.T) {
	src := []byte("<?php\nnamespace App\\Models;\nclass User {}\n")
	aFile, err := inspector.NewFactory().InspectSource(context.Background(), "app/Models/User.php", src, graph.KindResource)
	require.NoError(t, err)
	require.NotNil(t, aFile.Unit("User"))
	assert.Equal(t, `App\Models\User`, aFile.Primary().Name)
}

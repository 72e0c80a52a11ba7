package jsonschema

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalsource "github.com/goliatone/go-formstate/internal/source"
	"github.com/goliatone/go-formstate/pkg/form"
	"github.com/goliatone/go-formstate/pkg/rules"
	"github.com/goliatone/go-formstate/pkg/source"
)

func loadProfile(t *testing.T, opts ...Option) *Resolver {
	t.Helper()
	loader := internalsource.New(source.NewLoaderOptions(source.WithFileSystem(os.DirFS("testdata"))))
	r, err := Load(context.Background(), loader, source.FromFS("profile.schema.yaml"), opts...)
	require.NoError(t, err)
	return r
}

func TestResolveMapsErrorsToPaths(t *testing.T) {
	r := loadProfile(t, WithMessages(map[string]string{
		"username.required": "Username is required",
		"email":             "Enter a valid email",
	}))

	cases := []struct {
		name   string
		values map[string]any
		want   form.FieldErrors
	}{
		{
			name: "blank required fields",
			values: map[string]any{
				"username": "",
				"email":    "",
			},
			want: form.FieldErrors{
				"username": {Type: "required", Message: "Username is required"},
				"email":    {Type: "required", Message: "Enter a valid email"},
			},
		},
		{
			name: "length and format",
			values: map[string]any{
				"username": "bw",
				"email":    "not-an-email",
				"age":      12.0,
			},
			want: form.FieldErrors{
				"username": {Type: "minLength"},
				"email":    {Type: "format", Message: "Enter a valid email"},
				"age":      {Type: "minimum"},
			},
		},
		{
			name: "array items",
			values: map[string]any{
				"username":  "bruce",
				"email":     "bruce@wayne.com",
				"phNumbers": []any{map[string]any{"number": "abc"}, map[string]any{"number": ""}},
			},
			want: form.FieldErrors{
				"phNumbers.0.number": {Type: "pattern"},
				"phNumbers.1.number": {Type: "required", Message: "field is required"},
			},
		},
		{
			name: "empty array",
			values: map[string]any{
				"username":  "bruce",
				"email":     "bruce@wayne.com",
				"phNumbers": []any{},
			},
			want: form.FieldErrors{"phNumbers": {Type: "minItems"}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.Resolve(context.Background(), tc.values)
			require.NoError(t, err)
			require.Len(t, got, len(tc.want))
			for path, want := range tc.want {
				fe, ok := got[path]
				require.True(t, ok, "missing error for %s in %v", path, got)
				assert.Equal(t, want.Type, fe.Type)
				if want.Message != "" {
					assert.Equal(t, want.Message, fe.Message)
				} else {
					assert.NotEmpty(t, fe.Message)
				}
			}
		})
	}
}

func TestResolveValidSnapshot(t *testing.T) {
	r := loadProfile(t)
	got, err := r.Resolve(context.Background(), map[string]any{
		"username":  "bruce",
		"email":     "bruce@wayne.com",
		"age":       40,
		"phNumbers": []any{map[string]any{"number": "555-1234"}},
	})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestKeepEmpty(t *testing.T) {
	r := loadProfile(t, WithKeepEmpty())
	got, err := r.Resolve(context.Background(), map[string]any{"username": "", "email": "bruce@wayne.com"})
	require.NoError(t, err)
	assert.Equal(t, "minLength", got["username"].Type)
}

func TestCompileRejectsInvalidSchema(t *testing.T) {
	_, err := Compile([]byte(`{"type": 12}`))
	require.Error(t, err)

	_, err = Compile(nil)
	require.Error(t, err)
}

func TestFormSubmitWithSchema(t *testing.T) {
	r := loadProfile(t, WithMessages(map[string]string{"username.required": "Username is required"}))
	f, err := form.New(
		form.WithResolver(r),
		form.WithDefaultValues(map[string]any{
			"username":  "",
			"email":     "bruce@wayne.com",
			"phNumbers": []any{map[string]any{"number": "555-1234"}},
		}),
	)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Register("username", rules.Rules{})
	require.NoError(t, err)
	_, err = f.Register("email", rules.Rules{})
	require.NoError(t, err)
	_, err = f.FieldArray("phNumbers")
	require.NoError(t, err)

	var got form.FieldErrors
	err = f.Submit(context.Background(), func(context.Context, map[string]any) error {
		t.Fatal("onValid must not run")
		return nil
	}, func(_ context.Context, errs form.FieldErrors) { got = errs })
	require.NoError(t, err)
	assert.Equal(t, form.FieldErrors{"username": {Type: "required", Message: "Username is required"}}, got)
	assert.Equal(t, 1, f.State().SubmitCount)

	require.NoError(t, f.Change(context.Background(), "username", "bruce"))
	var payload map[string]any
	err = f.Submit(context.Background(), func(_ context.Context, values map[string]any) error {
		payload = values
		return nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "bruce", payload["username"])
	assert.True(t, f.State().IsSubmitSuccessful)
}

package definition

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-formstate/pkg/form"
	"github.com/goliatone/go-formstate/pkg/rules"
)

func TestFromOpenAPIOperation(t *testing.T) {
	def, err := FromOpenAPI(context.Background(), readFixture(t, "openapi.yaml"), "createChannel")
	require.NoError(t, err)

	assert.Equal(t, "createChannel", def.ID)
	assert.Equal(t, "Create a channel", def.Title)
	assert.Equal(t, form.ModeOnTouched, def.Mode)

	paths := make([]string, len(def.Fields))
	for i, f := range def.Fields {
		paths[i] = f.Path
	}
	assert.Equal(t, []string{"age", "email", "id", "plan", "social.twitter", "terms", "username"}, paths)

	username, _ := def.Field("username")
	assert.Equal(t, "Username", username.Label)
	require.NotNil(t, username.Rules.Required)
	assert.Equal(t, 3, username.Rules.MinLength.Value)
	assert.Equal(t, 20, username.Rules.MaxLength.Value)

	email, _ := def.Field("email")
	require.NotNil(t, email.Rules.Required)
	require.Len(t, email.Rules.Validate, 1)
	assert.Equal(t, "email", email.Rules.Validate[0].Name)

	age, _ := def.Field("age")
	assert.Nil(t, age.Rules.Required)
	assert.Equal(t, rules.ValueAsNumber, age.Rules.ValueAs)
	assert.Equal(t, float64(18), age.Rules.Min.Value)

	plan, _ := def.Field("plan")
	assert.Equal(t, InputSelect, plan.Input)
	assert.Equal(t, []string{"free", "pro"}, plan.Options)

	id, _ := def.Field("id")
	assert.True(t, id.Rules.Disabled)

	terms, _ := def.Field("terms")
	assert.Equal(t, InputConfirm, terms.Input)
	assert.Equal(t, "Accept the terms", terms.Label)

	assert.Equal(t, map[string]any{"username": "batman", "plan": "free"}, def.Defaults)

	require.Len(t, def.Arrays, 2)
	phones, tags := def.Arrays[0], def.Arrays[1]
	assert.Equal(t, "phNumbers", phones.Name)
	assert.Equal(t, 1, phones.MinItems)
	require.Len(t, phones.Items, 1)
	assert.Equal(t, "number", phones.Items[0].Path)
	assert.NotNil(t, phones.Items[0].Rules.Required)

	assert.Equal(t, "tags", tags.Name)
	require.Len(t, tags.Items, 1)
	assert.Equal(t, "", tags.Items[0].Path)
	assert.Equal(t, 2, tags.Items[0].Rules.MinLength.Value)
}

func TestFromOpenAPIFallbackOperationID(t *testing.T) {
	def, err := FromOpenAPI(context.Background(), readFixture(t, "openapi.yaml"), "put:/channels/{id}")
	require.NoError(t, err)
	require.Len(t, def.Fields, 1)
	assert.Equal(t, "name", def.Fields[0].Path)

	_, err = FromOpenAPI(context.Background(), readFixture(t, "openapi.yaml"), "deleteChannel")
	assert.ErrorContains(t, err, "not found")
}

func TestFromOpenAPIBuildsWorkingForm(t *testing.T) {
	ctx := context.Background()
	def, err := FromOpenAPI(ctx, readFixture(t, "openapi.yaml"), "createChannel")
	require.NoError(t, err)

	f, err := def.Build()
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	require.NoError(t, f.Change(ctx, "email", "not an email"))
	ok, err := f.Trigger(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	errs := f.Errors()
	assert.Equal(t, "must be a valid email address", errs["email"].Message)
	_, usernameFailed := errs["username"]
	assert.False(t, usernameFailed)

	phones, err := f.FieldArray("phNumbers")
	require.NoError(t, err)
	require.NoError(t, phones.Append(ctx, nil))
	ok, err = f.Trigger(ctx, "phNumbers")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "required", f.Errors()["phNumbers.0.number"].Type)
}

func TestFromOpenAPIRejectsRecursiveBodies(t *testing.T) {
	const document = `
openapi: 3.0.3
info: {title: Tree, version: "1"}
paths:
  /nodes:
    post:
      operationId: createNode
      requestBody:
        content:
          application/json:
            schema:
              $ref: '#/components/schemas/Node'
      responses:
        "201": {description: created}
components:
  schemas:
    Node:
      type: object
      properties:
        name: {type: string}
        parent:
          $ref: '#/components/schemas/Node'
`
	_, err := FromOpenAPI(context.Background(), []byte(document), "createNode")
	assert.ErrorContains(t, err, "recursive schema")
}

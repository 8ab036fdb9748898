package merge

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	t.Parallel()

	fields := map[string]string{"Name": "Ada", "City": "London"}

	tests := []struct {
		name string
		tmpl string
		want string
	}{
		{name: "single field", tmpl: "Hi {Name},", want: "Hi Ada,"},
		{name: "repeated field", tmpl: "{Name} {Name}", want: "Ada Ada"},
		{name: "multiple fields", tmpl: "{Name} from {City}", want: "Ada from London"},
		{name: "missing field renders empty", tmpl: "Hi {Surname}!", want: "Hi !"},
		{name: "no placeholders", tmpl: "plain text", want: "plain text"},
		{name: "empty template", tmpl: "", want: ""},
		{name: "unclosed brace", tmpl: "Hi {Name", want: "Hi {Name"},
		{name: "stray closing brace", tmpl: "Hi Name}", want: "Hi Name}"},
		{name: "empty placeholder", tmpl: "Hi {}", want: "Hi {}"},
		{name: "nested brace", tmpl: "Hi {{Name}}", want: "Hi {{Name}}"},
		{name: "multiline body", tmpl: "Hi {Name},\n\nBye", want: "Hi Ada,\n\nBye"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, Render(tt.tmpl, fields))
		})
	}
}

func TestRender_DoesNotExpandValues(t *testing.T) {
	t.Parallel()

	fields := map[string]string{"Name": "{City}", "City": "London"}
	require.Equal(t, "Hi {City}", Render("Hi {Name}", fields))
}

func TestRender_NilFields(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Hi ", Render("Hi {Name}", nil))
}

func TestRender_EveryPresentFieldSubstituted(t *testing.T) {
	t.Parallel()

	fields := map[string]string{"a": "1", "b c": "2", "Ünï": "3"}
	out := Render("{a}-{b c}-{Ünï}", fields)
	require.Equal(t, "1-2-3", out)
	require.NotContains(t, out, "{")
}

func TestPlaceholders(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"Name", "City"}, Placeholders("{Name} {City} {Name}"))
	require.Nil(t, Placeholders("no fields"))
	require.Nil(t, Placeholders("{broken"))
}

func TestValid(t *testing.T) {
	t.Parallel()

	require.True(t, Valid("Hi {Name}"))
	require.True(t, Valid(""))
	require.False(t, Valid("Hi {"))
	require.False(t, Valid("}"))
}

func TestFields(t *testing.T) {
	t.Parallel()

	row := map[string]string{"Full Name": "Ada Lovelace", "Company": "Analytical"}

	got := Fields(row, "  ada@example.com ", "Full Name")
	require.Equal(t, "Ada Lovelace", got[FieldName])
	require.Equal(t, "ada@example.com", got[FieldEmail])
	require.Equal(t, "Analytical", got["Company"])

	// The source row is not modified.
	_, ok := row[FieldName]
	require.False(t, ok)
}

func TestFields_MissingNameColumn(t *testing.T) {
	t.Parallel()

	got := Fields(map[string]string{"Email": "x@y.z"}, "x@y.z", "Name")
	require.Equal(t, "", got[FieldName])

	got = Fields(map[string]string{"Name": "Row name"}, "x@y.z", "")
	require.Equal(t, "", got[FieldName])
}

// Package testenv provides shared schema fixtures for tests across the
// module. The sample schema is a small CRM slice: accounts owned by users,
// with contacts hanging off accounts.
package testenv

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kommetio/reportgrid/internal/meta"
)

// SchemaCUE is the canonical test schema. User.name is the default field of
// User, which makes Account.owner the standard case for the
// relationship-grouping auxiliary column.
const SchemaCUE = `
types: {
	Account: {
		label:        "Account"
		prefix:       "010"
		defaultField: "name"
		fields: {
			name:     {type: "text", label: "Name", required: true}
			revenue:  {type: "number", label: "Annual Revenue"}
			active:   {type: "bool", label: "Active"}
			industry: {type: "enum", label: "Industry", values: ["Technology", "Retail", "Finance"]}
			owner:    {type: "reference", to: "User", label: "Owner"}
			contacts: {type: "inverse", to: "Contact", mappedBy: "account", label: "Contacts"}
		}
	}
	User: {
		label:        "User"
		prefix:       "005"
		defaultField: "name"
		fields: {
			name:    {type: "text", label: "Name", required: true}
			email:   {type: "text", label: "Email"}
			manager: {type: "reference", to: "User", label: "Manager"}
		}
	}
	Contact: {
		label:        "Contact"
		prefix:       "011"
		defaultField: "lastName"
		fields: {
			firstName: {type: "text", label: "First Name"}
			lastName:  {type: "text", label: "Last Name", required: true}
			account:   {type: "reference", to: "Account", label: "Account"}
		}
	}
}
`

// Registry loads the sample schema, failing the test on any loader error.
func Registry(t *testing.T) *meta.Registry {
	t.Helper()
	reg, err := meta.LoadRegistry(SchemaCUE)
	require.NoError(t, err)
	return reg
}

package user

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/bursary/core"
)

func fieldTags(err error) map[string]string {
	tags := make(map[string]string)
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			tags[fe.Field()] = fe.Tag()
		}
	}
	return tags
}

func TestNewUser_validation(t *testing.T) {
	base := func() NewUser {
		return NewUser{
			Name:            "Jane Doe",
			Username:        "jdoe",
			Email:           "jane@test.edu",
			Password:        "Sup3r$ecret",
			PasswordConfirm: "Sup3r$ecret",
		}
	}

	tests := []struct {
		name   string
		modify func(nu *NewUser)
		field  string
		tag    string
	}{
		{name: "valid"},
		{name: "no username nor email", modify: func(nu *NewUser) { nu.Username, nu.Email = "", "" }, field: "username", tag: usernameOrEmailTag},
		{name: "short password", modify: func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "Ab1$", "Ab1$" }, field: "password", tag: pwdMinLenTag},
		{name: "whitespace", modify: func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "Sup3r $ecret", "Sup3r $ecret" }, field: "password", tag: pwdNoSpaceTag},
		{name: "all numeric", modify: func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "1234567890", "1234567890" }, field: "password", tag: pwdNotAllNumTag},
		{name: "not complex", modify: func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "supersecret", "supersecret" }, field: "password", tag: pwdComplexityTag},
		{name: "similar to email", modify: func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "Jane@test.edu1", "Jane@test.edu1" }, field: "password", tag: pwdAttrSimTag},
		{name: "confirm mismatch", modify: func(nu *NewUser) { nu.PasswordConfirm = "other" }, field: "password_confirm", tag: "eqfield"},
		{name: "unknown role", modify: func(nu *NewUser) { nu.Roles = []string{RoleStudent, "teacher:"} }, field: "roles", tag: allRolesTag},
		{name: "bad username", modify: func(nu *NewUser) { nu.Username = "j-doe!" }, field: "username", tag: "alphanum_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := base()
			if tt.modify != nil {
				tt.modify(&nu)
			}
			err := core.Validate.Struct(nu)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.tag, fieldTags(err)[tt.field], "%v", err)
		})
	}
}

func TestCommonPasswords(t *testing.T) {
	assert.NotEmpty(t, commonPasswords, "common passwords are embedded")
	nu := NewUser{Name: "X", Username: "someone", Password: "P@ssw0rd", PasswordConfirm: "P@ssw0rd"}
	assert.Equal(t, pwdNoCommonTag, fieldTags(core.Validate.Struct(nu))["password"])
}

func TestAllRoles(t *testing.T) {
	assert.ElementsMatch(t, []string{RoleAdmin, RoleAdminOwner, RoleAdminFinance, RoleStudent}, AllRoles)
	assert.Equal(t, 30, MaxRolePriority([]string{RoleStudent, RoleAdminOwner}))
	assert.Equal(t, 0, MaxRolePriority(nil))

	usr := User{Roles: []string{RoleAdminFinance}}
	assert.True(t, usr.IsAdmin())
	assert.False(t, usr.IsStudent())
}

package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"electrotech/jwt"
	"electrotech/models"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestAuth(t *testing.T) (*AuthService, *gorm.DB) {
	t.Helper()

	db := newTestDB(t)
	hasher, err := NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	signer, err := jwt.NewHMACSigner([]byte(testSecret), "electrotech-test")
	require.NoError(t, err)

	return NewAuthService(db, hasher, signer, time.Hour), db
}

func aliceInput() RegisterInput {
	return RegisterInput{
		Username:  "alice",
		Email:     "Alice@Example.com",
		Password:  "s3cretpass",
		FirstName: "Alice",
		LastName:  "Liddell",
	}
}

func TestRegister_CreatesCustomerWithCart(t *testing.T) {
	auth, db := newTestAuth(t)
	ctx := context.Background()

	user, err := auth.Register(ctx, aliceInput())
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, models.RoleCustomer, user.Role)
	assert.True(t, user.IsActive())
	assert.NotEqual(t, "s3cretpass", user.Password)

	var cart models.Cart
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&cart).Error)
}

func TestRegister_Conflicts(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	_, err := auth.Register(ctx, aliceInput())
	require.NoError(t, err)

	dupEmail := aliceInput()
	dupEmail.Username = "alice2"
	dupEmail.Email = "ALICE@example.com"
	_, err = auth.Register(ctx, dupEmail)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "email", conflict.Field)

	dupName := aliceInput()
	dupName.Email = "other@example.com"
	_, err = auth.Register(ctx, dupName)
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "username", conflict.Field)
}

func TestRegister_Validation(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	cases := map[string]func(*RegisterInput){
		"username":   func(in *RegisterInput) { in.Username = "a b" },
		"email":      func(in *RegisterInput) { in.Email = "not-an-email" },
		"password":   func(in *RegisterInput) { in.Password = "lettersonly" },
		"first_name": func(in *RegisterInput) { in.FirstName = " " },
		"phone":      func(in *RegisterInput) { in.Phone = strings.Repeat("1", 21) },
	}
	for field, mut := range cases {
		t.Run(field, func(t *testing.T) {
			in := aliceInput()
			mut(&in)
			_, err := auth.Register(ctx, in)
			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, field, validationErr.Field)
		})
	}
}

func TestLogin_ByUsernameOrEmail(t *testing.T) {
	auth, db := newTestAuth(t)
	ctx := context.Background()

	user, err := auth.Register(ctx, aliceInput())
	require.NoError(t, err)

	for _, identifier := range []string{"alice", "alice@example.com", "ALICE@EXAMPLE.COM"} {
		res, err := auth.Login(ctx, identifier, "s3cretpass")
		require.NoError(t, err, identifier)
		assert.NotEmpty(t, res.AccessToken)
		assert.Equal(t, user.ID, res.User.ID)
		assert.NotNil(t, res.User.LastLoginAt)
	}

	var sessions int64
	require.NoError(t, db.Model(&models.LoginToken{}).Where("user_id = ?", user.ID).Count(&sessions).Error)
	assert.Equal(t, int64(3), sessions)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	_, err := auth.Register(ctx, aliceInput())
	require.NoError(t, err)

	var wrongPassword, unknownUser, viaEmail *UnauthorizedError
	_, err = auth.Login(ctx, "alice", "wrongpass1")
	require.ErrorAs(t, err, &wrongPassword)
	_, err = auth.Login(ctx, "nobody", "s3cretpass")
	require.ErrorAs(t, err, &unknownUser)
	_, err = auth.Login(ctx, "alice@example.com", "wrongpass1")
	require.ErrorAs(t, err, &viaEmail)

	assert.Equal(t, wrongPassword.Message, unknownUser.Message)
	assert.Equal(t, wrongPassword.Message, viaEmail.Message)
}

func TestLogin_SuspendedAccount(t *testing.T) {
	auth, db := newTestAuth(t)
	ctx := context.Background()

	user, err := auth.Register(ctx, aliceInput())
	require.NoError(t, err)
	res, err := auth.Login(ctx, "alice", "s3cretpass")
	require.NoError(t, err)

	require.NoError(t, db.Model(user).UpdateColumn("status", models.AccountSuspended).Error)

	var unauthorized *UnauthorizedError
	_, err = auth.Login(ctx, "alice", "s3cretpass")
	assert.ErrorAs(t, err, &unauthorized)
	_, err = auth.Authenticate(ctx, res.AccessToken)
	assert.ErrorAs(t, err, &unauthorized, "existing sessions stop working too")
}

func TestAuthenticate_AndLogout(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	user, err := auth.Register(ctx, aliceInput())
	require.NoError(t, err)
	res, err := auth.Login(ctx, "alice", "s3cretpass")
	require.NoError(t, err)

	identity, err := auth.Authenticate(ctx, res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, identity.UserID)
	assert.Equal(t, "alice", identity.Username)
	assert.Equal(t, models.RoleCustomer, identity.Role)
	assert.False(t, identity.IsAdmin())

	var unauthorized *UnauthorizedError
	_, err = auth.Authenticate(ctx, res.AccessToken+"x")
	assert.ErrorAs(t, err, &unauthorized)
	_, err = auth.Authenticate(ctx, "")
	assert.ErrorAs(t, err, &unauthorized)

	require.NoError(t, auth.Logout(ctx, identity))
	_, err = auth.Authenticate(ctx, res.AccessToken)
	assert.ErrorAs(t, err, &unauthorized)

	var notFound *NotFoundError
	assert.ErrorAs(t, auth.Logout(ctx, identity), &notFound)
}

func TestAuthenticate_UsesCurrentRole(t *testing.T) {
	auth, db := newTestAuth(t)
	ctx := context.Background()

	user, err := auth.Register(ctx, aliceInput())
	require.NoError(t, err)
	res, err := auth.Login(ctx, "alice", "s3cretpass")
	require.NoError(t, err)

	require.NoError(t, db.Model(user).UpdateColumn("role", models.RoleAdmin).Error)

	identity, err := auth.Authenticate(ctx, res.AccessToken)
	require.NoError(t, err)
	assert.True(t, identity.IsAdmin())
}

func TestUpdateProfile(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	user, err := auth.Register(ctx, aliceInput())
	require.NoError(t, err)
	other := aliceInput()
	other.Username = "bob"
	other.Email = "bob@example.com"
	_, err = auth.Register(ctx, other)
	require.NoError(t, err)

	phone := "+1 555 0100"
	updated, err := auth.UpdateProfile(ctx, user.ID, ProfileUpdate{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, phone, updated.Phone)

	email := "alice@wonderland.example"
	var unauthorized *UnauthorizedError
	_, err = auth.UpdateProfile(ctx, user.ID, ProfileUpdate{Email: &email, OldPassword: "wrongpass1"})
	assert.ErrorAs(t, err, &unauthorized)

	taken := "bob@example.com"
	var conflict *ConflictError
	_, err = auth.UpdateProfile(ctx, user.ID, ProfileUpdate{Email: &taken, OldPassword: "s3cretpass"})
	assert.ErrorAs(t, err, &conflict)

	_, err = auth.UpdateProfile(ctx, user.ID, ProfileUpdate{
		Email:       &email,
		OldPassword: "s3cretpass",
		NewPassword: "n3wpassword",
	})
	require.NoError(t, err)

	_, err = auth.Login(ctx, "alice", "s3cretpass")
	assert.ErrorAs(t, err, &unauthorized)
	_, err = auth.Login(ctx, email, "n3wpassword")
	assert.NoError(t, err)
}

func TestUpdateProfile_NameRules(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	user, err := auth.Register(ctx, aliceInput())
	require.NoError(t, err)

	blank := "   "
	long := strings.Repeat("a", 101)
	for _, upd := range []ProfileUpdate{
		{FirstName: &blank},
		{LastName: &blank},
		{FirstName: &long},
		{LastName: &long},
	} {
		_, err := auth.UpdateProfile(ctx, user.ID, upd)
		var validationErr *ValidationError
		assert.ErrorAs(t, err, &validationErr)
	}

	profile, err := auth.Profile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.FirstName, profile.FirstName)
	assert.Equal(t, user.LastName, profile.LastName)

	name := " Alicia "
	updated, err := auth.UpdateProfile(ctx, user.ID, ProfileUpdate{FirstName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Alicia", updated.FirstName)
}

func TestListUsers(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	for _, name := range []string{"alice", "bob", "carol"} {
		in := aliceInput()
		in.Username = name
		in.Email = name + "@example.com"
		_, err := auth.Register(ctx, in)
		require.NoError(t, err)
	}

	users, total, err := auth.ListUsers(ctx, mustPage(t, 2, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, users, 1)
	assert.Equal(t, "carol", users[0].Username)
}

func TestBcryptHasher(t *testing.T) {
	_, err := NewBcryptHasher(bcrypt.MaxCost + 1)
	assert.Error(t, err)

	hasher, err := NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	hash, err := hasher.Hash("pa55word")
	require.NoError(t, err)
	assert.True(t, hasher.Verify("pa55word", hash))
	assert.False(t, hasher.Verify("pa55wore", hash))
	assert.False(t, hasher.Verify("pa55word", "garbage"))
}

package authcore

import (
	"context"
	"errors"
	"testing"
)

func validInput() RegisterInput {
	return RegisterInput{
		Username:    "alice_w",
		Email:       "alice@example.com",
		Password:    "Password1!",
		PhoneNumber: "5551234567",
	}
}

func TestRegisterCreatesAccount(t *testing.T) {
	env := newTestEnv(t)

	acct, err := env.engine.Register(context.Background(), validInput())
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if acct.ID == "" {
		t.Fatal("expected a generated account id")
	}
	if acct.Role != RoleUser {
		t.Fatalf("role = %q, want user", acct.Role)
	}
	if !acct.Active {
		t.Fatal("new accounts must be active")
	}
	if acct.PhoneSuffix != "567" {
		t.Fatalf("phone suffix = %q, want 567", acct.PhoneSuffix)
	}
	if acct.CredentialHash == "Password1!" || acct.CredentialHash == "" {
		t.Fatal("password must be stored hashed")
	}
	if acct.PhoneHash == "5551234567" || acct.PhoneHash == "" {
		t.Fatal("phone number must be stored hashed")
	}

	if _, err := env.engine.Login(context.Background(), "alice@example.com", "Password1!"); err != nil {
		t.Fatalf("login with registered credentials: %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.engine.Register(ctx, validInput()); err != nil {
		t.Fatalf("first register: %v", err)
	}

	input := validInput()
	input.Username = "someone_else"
	if _, err := env.engine.Register(ctx, input); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("err = %v, want ErrEmailExists", err)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.engine.Register(ctx, validInput()); err != nil {
		t.Fatalf("first register: %v", err)
	}

	input := validInput()
	input.Email = "other@example.com"
	if _, err := env.engine.Register(ctx, input); !errors.Is(err, ErrUsernameExists) {
		t.Fatalf("err = %v, want ErrUsernameExists", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*RegisterInput)
		want   error
	}{
		{"short username", func(in *RegisterInput) { in.Username = "ab" }, ErrUsernamePolicy},
		{"username with spaces", func(in *RegisterInput) { in.Username = "a b c" }, ErrUsernamePolicy},
		{"malformed email", func(in *RegisterInput) { in.Email = "not-an-email" }, ErrEmailInvalid},
		{"short password", func(in *RegisterInput) { in.Password = "Ab!" }, ErrPasswordPolicy},
		{"no uppercase", func(in *RegisterInput) { in.Password = "password1!" }, ErrPasswordPolicy},
		{"no lowercase", func(in *RegisterInput) { in.Password = "PASSWORD1!" }, ErrPasswordPolicy},
		{"no special", func(in *RegisterInput) { in.Password = "Password11" }, ErrPasswordPolicy},
		{"short phone", func(in *RegisterInput) { in.PhoneNumber = "12345" }, ErrPhonePolicy},
		{"non-numeric phone", func(in *RegisterInput) { in.PhoneNumber = "555123456x" }, ErrPhonePolicy},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := validInput()
			tc.mutate(&input)
			if _, err := env.engine.Register(ctx, input); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestEmailAndUsernameExists(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.engine.Register(ctx, validInput()); err != nil {
		t.Fatalf("register: %v", err)
	}

	taken, err := env.engine.EmailExists(ctx, "alice@example.com")
	if err != nil || !taken {
		t.Fatalf("EmailExists = %v, %v; want true, nil", taken, err)
	}
	taken, err = env.engine.EmailExists(ctx, "free@example.com")
	if err != nil || taken {
		t.Fatalf("EmailExists = %v, %v; want false, nil", taken, err)
	}

	taken, err = env.engine.UsernameExists(ctx, "alice_w")
	if err != nil || !taken {
		t.Fatalf("UsernameExists = %v, %v; want true, nil", taken, err)
	}
	taken, err = env.engine.UsernameExists(ctx, "free_name")
	if err != nil || taken {
		t.Fatalf("UsernameExists = %v, %v; want false, nil", taken, err)
	}
}

func TestDeactivateAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acct, err := env.engine.Register(ctx, validInput())
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := env.engine.DeactivateAccount(ctx, acct.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := env.engine.DeactivateAccount(ctx, "missing"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("err = %v, want ErrAccountNotFound", err)
	}

	got, err := env.engine.AccountByID(ctx, acct.ID)
	if err != nil {
		t.Fatalf("account by id: %v", err)
	}
	if got.Active {
		t.Fatal("account should be inactive")
	}
}

// Command createuser adds an account to the FirmDesk database.
//
// Usage:
//
//	FIRMDESK_PASSWORD=... createuser -email owner@example.com -name "Asha Rao" -role owner
//	createuser -email staff@example.com -name "Dev" -role staff -reports-to 1 < password.txt
//
// The password is read from FIRMDESK_PASSWORD, or from the first line of stdin.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/avissapr/firmdesk/internal/config"
	"github.com/avissapr/firmdesk/internal/database"
	"github.com/avissapr/firmdesk/internal/models"
	"github.com/avissapr/firmdesk/internal/repository"
	"github.com/avissapr/firmdesk/internal/security"
	"github.com/avissapr/firmdesk/internal/services"
)

func main() {
	var (
		email     = flag.String("email", "", "login email (required)")
		name      = flag.String("name", "", "display name (required)")
		role      = flag.String("role", string(models.RoleStaff), "owner, manager, staff or individual")
		reportsTo = flag.Int("reports-to", 0, "id of the supervisor; omit for owner and individual")
	)
	flag.Parse()

	if err := run(*email, *name, models.Role(*role), *reportsTo); err != nil {
		log.Fatalf("createuser: %v", err)
	}
}

func run(email, name string, role models.Role, reportsTo int) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	validator := security.NewValidationService(&cfg.Security)
	user, err := newUser(validator, email, name, role, reportsTo)
	if err != nil {
		return err
	}
	password, err := readPassword(os.Stdin)
	if err != nil {
		return err
	}
	if err := validator.ValidatePassword(password); err != nil {
		return err
	}

	auth := services.NewAuthService(repository.Default().Users(), &cfg.Security)
	if user.PasswordHash, err = auth.HashPassword(password); err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := database.Connect(ctx, cfg.Database); err != nil {
		return err
	}
	defer database.Close()

	if err := repository.NewUserRepository().Create(ctx, user); err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	fmt.Printf("created user %d (%s, %s)\n", user.ID, user.Email, user.Role)
	return nil
}

// newUser validates the flags and builds the account to insert.
func newUser(v *security.ValidationService, email, name string, role models.Role, reportsTo int) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := v.ValidateEmail(email); err != nil {
		return nil, err
	}
	name = v.SanitizeString(name)
	if err := v.ValidateRequired("name", name); err != nil {
		return nil, err
	}
	if err := v.ValidateUserRole(string(role)); err != nil {
		return nil, err
	}

	user := &models.User{Email: email, Name: name, Role: role, Status: models.UserStatusActive}
	switch {
	case role == models.RoleOwner || role == models.RoleIndividual:
		if reportsTo != 0 {
			return nil, fmt.Errorf("%s accounts are organization roots and cannot report to anyone", role)
		}
	case reportsTo <= 0:
		return nil, fmt.Errorf("%s accounts need -reports-to", role)
	default:
		user.ReportsTo = &reportsTo
	}
	return user, nil
}

func readPassword(stdin io.Reader) (string, error) {
	if password := os.Getenv("FIRMDESK_PASSWORD"); password != "" {
		return password, nil
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("no password: set FIRMDESK_PASSWORD or pipe it on stdin")
	}
	return password, nil
}

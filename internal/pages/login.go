package pages

import (
	"context"
	"fmt"
	"time"

	"github.com/shehryarbajwa/saucedemo-e2e/internal/browser"
)

var (
	UsernameField = browser.XPath("//input[@placeholder = 'Username']")
	PasswordField = browser.XPath("//input[@placeholder = 'Password']")
	LoginButton   = browser.XPath("//input[@id= 'login-button']")
	LoginError    = browser.XPath("//h3[@data-test='error']")
)

// LoginPage is the SauceDemo sign-in form
type LoginPage struct {
	BasePage
}

// NewLoginPage returns the login page driven by d
func NewLoginPage(d browser.Driver, wait time.Duration) *LoginPage {
	return &LoginPage{BasePage: NewBasePage(d, wait)}
}

func (p *LoginPage) EnterUsername(ctx context.Context, username string) error {
	return p.EnterText(ctx, UsernameField, username)
}

func (p *LoginPage) EnterPassword(ctx context.Context, password string) error {
	return p.EnterText(ctx, PasswordField, password)
}

func (p *LoginPage) ClickLogin(ctx context.Context) error {
	return p.Click(ctx, LoginButton)
}

// Login fills in both fields and submits the form
func (p *LoginPage) Login(ctx context.Context, username, password string) error {
	if err := p.EnterUsername(ctx, username); err != nil {
		return fmt.Errorf("entering username: %w", err)
	}
	if err := p.EnterPassword(ctx, password); err != nil {
		return fmt.Errorf("entering password: %w", err)
	}
	if err := p.ClickLogin(ctx); err != nil {
		return fmt.Errorf("submitting login: %w", err)
	}
	return nil
}

// ErrorMessage returns the text of the error banner shown after a
// rejected login
func (p *LoginPage) ErrorMessage(ctx context.Context) (string, error) {
	return p.Text(ctx, LoginError)
}

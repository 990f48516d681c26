package pages

import (
	"context"
	"time"

	"github.com/shehryarbajwa/saucedemo-e2e/internal/browser"
)

// HomePageIdentifier is the "Products" heading of the inventory page
var HomePageIdentifier = browser.XPath("//span[@class='title' and contains(text(),'Products')]")

// HomePage is the inventory page shown after a successful login
type HomePage struct {
	BasePage
}

func NewHomePage(d browser.Driver, wait time.Duration) *HomePage {
	return &HomePage{BasePage: NewBasePage(d, wait)}
}

// IsDisplayed waits for the Products heading. It returns an
// ElementTimeoutError when the heading does not appear in time.
func (p *HomePage) IsDisplayed(ctx context.Context) (bool, error) {
	if err := p.Find(ctx, HomePageIdentifier); err != nil {
		return false, err
	}
	return true, nil
}

package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"go.uber.org/zap"

	"github.com/talimhub/school-ops-api/internal/models"
	appErrors "github.com/talimhub/school-ops-api/pkg/errors"
)

// StripeProvider adapts the Stripe API to the provider-agnostic views the
// subscription service consumes.
type StripeProvider struct {
	api    *client.API
	window time.Duration
	limit  int64
	logger *zap.Logger
}

// NewStripeProvider constructs the adapter. window bounds how far back the
// customer-subscription fallback search looks; limit caps its page size.
func NewStripeProvider(secretKey string, window time.Duration, limit int, logger *zap.Logger) *StripeProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	if limit <= 0 {
		limit = 25
	}
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeProvider{api: api, window: window, limit: int64(limit), logger: logger}
}

// CheckoutSession fetches a checkout session with its subscription and
// customer expanded.
func (p *StripeProvider) CheckoutSession(ctx context.Context, sessionID string) (*models.ProviderSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("subscription")
	params.AddExpand("customer")

	session, err := p.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, classifyStripeErr(err, "fetch checkout session")
	}

	out := &models.ProviderSession{
		ID:       session.ID,
		Metadata: session.Metadata,
	}
	if session.Subscription != nil {
		out.SubscriptionID = session.Subscription.ID
	}
	if session.Customer != nil {
		out.CustomerID = session.Customer.ID
	}
	if session.CustomerDetails != nil {
		out.CustomerEmail = session.CustomerDetails.Email
	}
	return out, nil
}

// Subscription fetches a single subscription by ID.
func (p *StripeProvider) Subscription(ctx context.Context, subscriptionID string) (*models.ProviderSubscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := p.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, classifyStripeErr(err, "fetch subscription")
	}
	return mapSubscription(sub), nil
}

// RecentSubscriptionsForCustomer lists the customer's subscriptions created
// inside the configured search window. Used as a fallback when a checkout
// session carries no subscription reference.
func (p *StripeProvider) RecentSubscriptionsForCustomer(ctx context.Context, customerID string) ([]models.ProviderSubscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		CreatedRange: &stripe.RangeQueryParams{
			GreaterThanOrEqual: time.Now().Add(-p.window).Unix(),
		},
	}
	params.Context = ctx
	params.Limit = stripe.Int64(p.limit)

	iter := p.api.Subscriptions.List(params)
	var subs []models.ProviderSubscription
	for iter.Next() {
		subs = append(subs, *mapSubscription(iter.Subscription()))
	}
	if err := iter.Err(); err != nil {
		return nil, classifyStripeErr(err, "list customer subscriptions")
	}
	return subs, nil
}

// RecentSubscriptions lists subscriptions across all customers created inside
// the configured search window. Used by payment-link finalization, where no
// checkout session id is available at all.
func (p *StripeProvider) RecentSubscriptions(ctx context.Context) ([]models.ProviderSubscription, error) {
	params := &stripe.SubscriptionListParams{
		CreatedRange: &stripe.RangeQueryParams{
			GreaterThanOrEqual: time.Now().Add(-p.window).Unix(),
		},
	}
	params.Context = ctx
	params.Limit = stripe.Int64(p.limit)

	iter := p.api.Subscriptions.List(params)
	var subs []models.ProviderSubscription
	for iter.Next() {
		subs = append(subs, *mapSubscription(iter.Subscription()))
	}
	if err := iter.Err(); err != nil {
		return nil, classifyStripeErr(err, "list recent subscriptions")
	}
	return subs, nil
}

func mapSubscription(sub *stripe.Subscription) *models.ProviderSubscription {
	out := &models.ProviderSubscription{
		ID:       sub.ID,
		Status:   string(sub.Status),
		Metadata: sub.Metadata,
		Created:  time.Unix(sub.Created, 0).UTC(),
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
		out.CustomerEmail = sub.Customer.Email
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		out.CurrentPeriodEnd = time.Unix(sub.Items.Data[0].CurrentPeriodEnd, 0).UTC()
	}
	return out
}

func classifyStripeErr(err error, action string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == 404 {
			return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, fmt.Sprintf("%s: not found", action))
		}
		return appErrors.Wrap(err, appErrors.ErrProvider.Code, appErrors.ErrProvider.Status, fmt.Sprintf("%s: %s", action, stripeErr.Code))
	}
	return appErrors.Wrap(err, appErrors.ErrProvider.Code, appErrors.ErrProvider.Status, action)
}

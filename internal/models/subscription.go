package models

import "time"

// StudentSubscription links a payment-provider subscription to a local
// student. provider_subscription_id is unique; a subscription can never be
// attached to two students.
type StudentSubscription struct {
	ID                     string     `db:"id" json:"id"`
	SchoolID               string     `db:"school_id" json:"school_id"`
	StudentID              int64      `db:"student_id" json:"student_id"`
	ProviderSubscriptionID string     `db:"provider_subscription_id" json:"provider_subscription_id"`
	ProviderCustomerID     string     `db:"provider_customer_id" json:"provider_customer_id"`
	PackageID              string     `db:"package_id" json:"package_id"`
	Status                 string     `db:"status" json:"status"`
	CurrentPeriodEnd       *time.Time `db:"current_period_end" json:"current_period_end,omitempty"`
	CreatedAt              time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time  `db:"updated_at" json:"updated_at"`
}

// ProviderSubscription is the provider-agnostic view of a remote
// subscription object used by the finalization guard.
type ProviderSubscription struct {
	ID               string            `json:"id"`
	CustomerID       string            `json:"customer_id"`
	CustomerEmail    string            `json:"customer_email"`
	Status           string            `json:"status"`
	Metadata         map[string]string `json:"metadata"`
	Created          time.Time         `json:"created"`
	CurrentPeriodEnd time.Time         `json:"current_period_end"`
}

// ProviderSession is the provider-agnostic view of a checkout session.
type ProviderSession struct {
	ID             string            `json:"id"`
	SubscriptionID string            `json:"subscription_id"`
	CustomerID     string            `json:"customer_id"`
	CustomerEmail  string            `json:"customer_email"`
	Metadata       map[string]string `json:"metadata"`
}

// Provider metadata keys written by checkout flows that embed them.
const (
	ProviderMetaStudentID = "student_id"
	ProviderMetaPackageID = "package_id"
	ProviderMetaSchoolID  = "school_id"
)

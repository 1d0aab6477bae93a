package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olamidemziyad/marketplace-cmr/domain"
)

func testFees() domain.CheckoutFees {
	return domain.CheckoutFees{
		ShippingFee:     decimal.NewFromInt(1000),
		PlatformFeeRate: decimal.NewFromFloat(0.10),
	}
}

func TestCheckout_HappyPath(t *testing.T) {
	store := &MockCheckoutStore{Session: testSession()}
	notifications := &MockNotificationStore{}
	jobs := &MockJobQueue{}
	svc := NewCheckoutService(store, notifications, jobs, testFees())

	session, err := svc.Checkout(context.Background(), CheckoutInput{
		BuyerID:       "buyer-1",
		AddressID:     "addr-1",
		PaymentMethod: domain.PaymentMethodMTN,
		PhoneNumber:   "+237670000001",
	})
	require.NoError(t, err)

	assert.Equal(t, "session-1", session.SessionID)
	assert.Equal(t, "buyer-1", store.GotBuyerID)
	assert.Equal(t, "addr-1", store.GotAddressID)
	assert.True(t, store.GotFees.ShippingFee.Equal(decimal.NewFromInt(1000)))

	require.Len(t, notifications.Created, 1)
	assert.Equal(t, domain.NotificationPaymentInitiated, notifications.Created[0].Type)
	assert.Len(t, jobs.Enqueued, 1)
}

func TestCheckout_MissingAddress(t *testing.T) {
	svc := NewCheckoutService(&MockCheckoutStore{}, &MockNotificationStore{}, &MockJobQueue{}, testFees())

	_, err := svc.Checkout(context.Background(), CheckoutInput{
		BuyerID:       "buyer-1",
		PaymentMethod: domain.PaymentMethodMTN,
		PhoneNumber:   "+237670000001",
	})

	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "addressId", validationErr.Field)
}

func TestCheckout_UnknownPaymentMethod(t *testing.T) {
	svc := NewCheckoutService(&MockCheckoutStore{}, &MockNotificationStore{}, &MockJobQueue{}, testFees())

	_, err := svc.Checkout(context.Background(), CheckoutInput{
		BuyerID:       "buyer-1",
		AddressID:     "addr-1",
		PaymentMethod: "paypal",
	})

	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "paymentMethod", validationErr.Field)
}

func TestCheckout_MobileMoneyNeedsPhone(t *testing.T) {
	svc := NewCheckoutService(&MockCheckoutStore{}, &MockNotificationStore{}, &MockJobQueue{}, testFees())

	_, err := svc.Checkout(context.Background(), CheckoutInput{
		BuyerID:       "buyer-1",
		AddressID:     "addr-1",
		PaymentMethod: domain.PaymentMethodOrange,
	})
	assert.ErrorIs(t, err, domain.ErrPhoneNumberRequired)
}

func TestCheckout_StoreErrorPropagates(t *testing.T) {
	store := &MockCheckoutStore{Err: domain.ErrCartEmpty}
	notifications := &MockNotificationStore{}
	svc := NewCheckoutService(store, notifications, &MockJobQueue{}, testFees())

	_, err := svc.Checkout(context.Background(), CheckoutInput{
		BuyerID:       "buyer-1",
		AddressID:     "addr-1",
		PaymentMethod: domain.PaymentMethodMTN,
		PhoneNumber:   "+237670000001",
	})

	assert.ErrorIs(t, err, domain.ErrCartEmpty)
	assert.Empty(t, notifications.Created, "no notification for a failed checkout")
}

func TestCheckout_NotificationFailureDoesNotFailCheckout(t *testing.T) {
	store := &MockCheckoutStore{Session: testSession()}
	notifications := &MockNotificationStore{Err: context.DeadlineExceeded}
	svc := NewCheckoutService(store, notifications, &MockJobQueue{}, testFees())

	session, err := svc.Checkout(context.Background(), CheckoutInput{
		BuyerID:       "buyer-1",
		AddressID:     "addr-1",
		PaymentMethod: domain.PaymentMethodMTN,
		PhoneNumber:   "+237670000001",
	})
	require.NoError(t, err, "checkout already committed, notification loss is tolerated")
	assert.NotNil(t, session)
}

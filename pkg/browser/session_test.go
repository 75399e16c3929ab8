package browser

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/guldbach/google-ads-builder-sub001/pkg/harness"
)

func openSession(t *testing.T, controller *gomock.Controller, opts ...SessionOption) (*Session, *MockDriver) {
	t.Helper()
	launcher := NewMockLauncher(controller)
	driver := NewMockDriver(controller)
	launcher.EXPECT().Name().Return("fake").AnyTimes()
	launcher.
		EXPECT().
		Launch(gomock.Any(), LaunchOptions{Headless: true}).
		Return(driver, nil).
		Times(1)

	session, err := Open(context.Background(), launcher, LaunchOptions{Headless: true}, opts...)
	require.NoError(t, err)
	return session, driver
}

func TestOpen(t *testing.T) {
	t.Run("should wrap launch failures in a LaunchError", func(t *testing.T) {
		controller := gomock.NewController(t)
		launcher := NewMockLauncher(controller)
		cause := errors.New("chromium not found")
		launcher.EXPECT().Name().Return("rod").AnyTimes()
		launcher.
			EXPECT().
			Launch(gomock.Any(), gomock.Any()).
			Return(nil, cause).
			Times(1)

		session, err := Open(context.Background(), launcher, LaunchOptions{})
		require.Nil(t, session)

		var launchErr *harness.LaunchError
		require.ErrorAs(t, err, &launchErr)
		require.Equal(t, "rod", launchErr.Engine)
		require.ErrorIs(t, err, cause)
	})
}

func TestSessionNavigate(t *testing.T) {
	t.Run("should pass the load state to the driver", func(t *testing.T) {
		controller := gomock.NewController(t)
		session, driver := openSession(t, controller)
		driver.
			EXPECT().
			Navigate(gomock.Any(), "http://app/lists/", WaitNetworkIdle).
			Return(nil).
			Times(1)

		require.NoError(t, session.Navigate(context.Background(), "http://app/lists/", Until(WaitNetworkIdle)))
	})

	t.Run("should default to the load event", func(t *testing.T) {
		controller := gomock.NewController(t)
		session, driver := openSession(t, controller)
		driver.EXPECT().Navigate(gomock.Any(), "http://app/", WaitLoad).Return(nil)

		require.NoError(t, session.Navigate(context.Background(), "http://app/", WaitUntil{}))
	})

	t.Run("should wrap driver failures in a NavigationError", func(t *testing.T) {
		controller := gomock.NewController(t)
		session, driver := openSession(t, controller)
		driver.
			EXPECT().
			Navigate(gomock.Any(), "http://app/", WaitDOMReady).
			Return(errors.New("net::ERR_CONNECTION_REFUSED"))

		err := session.Navigate(context.Background(), "http://app/", Until(WaitDOMReady))
		var navErr *harness.NavigationError
		require.ErrorAs(t, err, &navErr)
		require.False(t, navErr.TimedOut())
		require.Equal(t, "domready", navErr.WaitUntil)
	})

	t.Run("should poll a custom condition until it holds", func(t *testing.T) {
		controller := gomock.NewController(t)
		session, driver := openSession(t, controller, WithPollInterval(10*time.Millisecond))
		driver.EXPECT().Navigate(gomock.Any(), "http://app/", WaitDOMReady).Return(nil)

		probes := 0
		wait := UntilCondition("table rendered", func(ctx context.Context, d Driver) (bool, error) {
			probes++
			return probes == 3, nil
		})
		require.NoError(t, session.Navigate(context.Background(), "http://app/", wait))
		require.Equal(t, 3, probes)
	})

	t.Run("should report a timeout when the condition never holds", func(t *testing.T) {
		controller := gomock.NewController(t)
		session, driver := openSession(t, controller,
			WithNavigationTimeout(150*time.Millisecond),
			WithPollInterval(20*time.Millisecond),
		)
		driver.EXPECT().Navigate(gomock.Any(), "http://app/", WaitDOMReady).Return(nil)

		started := time.Now()
		err := session.Navigate(context.Background(), "http://app/", UntilCondition("never", func(context.Context, Driver) (bool, error) {
			return false, nil
		}))
		var navErr *harness.NavigationError
		require.ErrorAs(t, err, &navErr)
		require.True(t, navErr.TimedOut())
		require.Equal(t, "condition never", navErr.WaitUntil)
		require.Less(t, time.Since(started), time.Second)
	})

	t.Run("should return cancellation unwrapped from NavigationError", func(t *testing.T) {
		controller := gomock.NewController(t)
		session, driver := openSession(t, controller)
		ctx, cancel := context.WithCancel(context.Background())
		driver.
			EXPECT().
			Navigate(gomock.Any(), "http://app/", WaitLoad).
			DoAndReturn(func(ctx context.Context, _ string, _ LoadState) error {
				cancel()
				<-ctx.Done()
				return ctx.Err()
			})

		err := session.Navigate(ctx, "http://app/", Until(WaitLoad))
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, harness.KindCancelled, harness.KindOf(err))
	})
}

func TestSessionClose(t *testing.T) {
	t.Run("should close the driver exactly once", func(t *testing.T) {
		controller := gomock.NewController(t)
		session, driver := openSession(t, controller)
		driver.EXPECT().Close().Return(nil).Times(1)

		var wg sync.WaitGroup
		errs := make(chan error, 5)
		for range 5 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- session.Close()
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
		require.True(t, session.Closed())
	})

	t.Run("should refuse navigation after close", func(t *testing.T) {
		controller := gomock.NewController(t)
		session, driver := openSession(t, controller)
		driver.EXPECT().Close().Return(errors.New("already gone")).Times(1)

		require.Error(t, session.Close())
		require.Error(t, session.Close())
		require.ErrorIs(t, session.Navigate(context.Background(), "http://app/", Until(WaitLoad)), ErrSessionClosed)
		_, err := session.Screenshot(context.Background())
		require.ErrorIs(t, err, ErrSessionClosed)
	})
}

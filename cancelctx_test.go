package asyncrt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCancelFuncFiresRegisteredHooks(t *testing.T) {
	ctx, cancel := WithCancel(NewRootContext(nil))

	var got error
	ctx.Register(func(err error) { got = err })

	cancel(nil)

	require.Equal(t, ErrCancelled, got)
	err, cancelled := ctx.Cancelled()
	require.True(t, cancelled)
	require.Equal(t, ErrCancelled, err)
}

func TestCancelPropagatesToDescendants(t *testing.T) {
	root, cancelRoot := WithCancel(NewRootContext(nil))
	child, _ := WithCancel(root)
	grandchild, _ := WithCancel(child)

	var fired bool
	grandchild.Register(func(error) { fired = true })

	cancelRoot(nil)

	require.True(t, fired, "cancelling root did not propagate to grandchild's hooks")
	_, cancelled := grandchild.Cancelled()
	require.True(t, cancelled)
}

func TestRegisterAfterCancelFiresImmediately(t *testing.T) {
	ctx, cancel := WithCancel(NewRootContext(nil))
	cancel(ErrSchedulerDisposed)

	var got error
	ctx.Register(func(err error) { got = err })

	require.Equal(t, ErrSchedulerDisposed, got)
}

func TestWithBackgroundPropagatesFlag(t *testing.T) {
	root := NewRootContext(nil)
	require.False(t, root.Background(), "fresh root context should not be background")

	bg := WithBackground(root)
	require.True(t, bg.Background())

	child, _ := WithCancel(bg)
	require.True(t, child.Background(), "descendant of a background context should inherit the flag")
}

package adsession

import (
	"errors"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnableControl(t *testing.T) {
	t.Run("unadvertised control returns failure without mutating the registry", func(t *testing.T) {
		dialer := &fakeDialer{}
		sess, err := Connect(t.Context(), testConfig(dialer))
		require.NoError(t, err)
		defer sess.Close()

		ok, err := sess.EnableControl(t.Context(), "1.2.3.4.5", true, "")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, sess.Controls())

		_, applied := dialer.last().options[OptionServerControls]
		assert.False(t, applied, "control option applied for unadvertised control")
	})

	t.Run("advertised control is appended and re-applied", func(t *testing.T) {
		dialer := &fakeDialer{}
		sess, err := Connect(t.Context(), testConfig(dialer))
		require.NoError(t, err)
		defer sess.Close()

		ok, err := sess.EnableControl(t.Context(), testControlPaging, false, "")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = sess.EnableControl(t.Context(), testControlShowDel, true, "")
		require.NoError(t, err)
		assert.True(t, ok)

		registered := sess.Controls()
		require.Len(t, registered, 2)
		assert.Equal(t, testControlPaging, registered[0].OID)
		assert.False(t, registered[0].Critical)
		assert.Equal(t, testControlShowDel, registered[1].OID)
		assert.True(t, registered[1].Critical)

		// The full list is re-applied as a single option on every mutation.
		wire, ok2 := dialer.last().options[OptionServerControls].([]ldap.Control)
		require.True(t, ok2)
		require.Len(t, wire, 2)
	})

	t.Run("server rejection rolls the registry back", func(t *testing.T) {
		dialer := &fakeDialer{setup: func(c *fakeConn) {
			c.setOptionErr = map[Option]error{
				OptionServerControls: ldap.NewError(ldap.LDAPResultUnavailableCriticalExtension,
					errors.New("critical extension unavailable")),
			}
		}}
		sess, err := Connect(t.Context(), testConfig(dialer))
		require.NoError(t, err)
		defer sess.Close()

		before := len(sess.Controls())
		ok, err := sess.EnableControl(t.Context(), testControlPaging, true, "")
		require.Error(t, err)
		assert.False(t, ok)
		assert.True(t, IsUnsupportedFeatureError(err))
		assert.Len(t, sess.Controls(), before)
	})

	t.Run("uses the cached root dse", func(t *testing.T) {
		dialer := &fakeDialer{}
		sess, err := Connect(t.Context(), testConfig(dialer))
		require.NoError(t, err)
		defer sess.Close()

		_, err = sess.EnableControl(t.Context(), testControlPaging, false, "")
		require.NoError(t, err)
		_, err = sess.EnableControl(t.Context(), testControlShowDel, false, "")
		require.NoError(t, err)

		assert.Equal(t, 1, dialer.last().readCalls, "control registration reloaded the RootDSE")
	})

	t.Run("value payload is retained but not encoded", func(t *testing.T) {
		dialer := &fakeDialer{}
		sess, err := Connect(t.Context(), testConfig(dialer))
		require.NoError(t, err)
		defer sess.Close()

		ok, err := sess.EnableControl(t.Context(), testControlPaging, false, "opaque-payload")
		require.NoError(t, err)
		require.True(t, ok)

		registered := sess.Controls()
		require.Len(t, registered, 1)
		assert.Equal(t, "opaque-payload", registered[0].Value)

		wire := dialer.last().options[OptionServerControls].([]ldap.Control)
		ctrl, isString := wire[0].(*ldap.ControlString)
		require.True(t, isString)
		assert.Empty(t, ctrl.ControlValue)
		assert.Equal(t, testControlPaging, ctrl.ControlType)
	})
}

func TestControlRegistry(t *testing.T) {
	var reg ControlRegistry

	reg.append(Control{OID: testControlPaging})
	reg.append(Control{OID: testControlShowDel, Critical: true})
	assert.Equal(t, 2, reg.Len())

	reg.pop()
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, testControlPaging, reg.Controls()[0].OID)

	// Controls returns a copy.
	reg.Controls()[0].OID = "mutated"
	assert.Equal(t, testControlPaging, reg.Controls()[0].OID)

	reg.pop()
	reg.pop() // popping an empty registry is harmless
	assert.Zero(t, reg.Len())
}

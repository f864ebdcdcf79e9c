package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

func TestFlexStringAcceptsNumbersAndStrings(t *testing.T) {
	var req RegisterRequest
	require.NoError(t, json.Unmarshal([]byte(`{"age": 27, "tableId": "5", "telegram_id": 123456789}`), &req))

	assert.Equal(t, "27", req.Age.String())
	assert.Equal(t, "5", req.TableID.String())
	assert.Equal(t, "123456789", req.TelegramID.String())
}

func TestFlexStringRejectsObjects(t *testing.T) {
	var req RegisterRequest
	err := json.Unmarshal([]byte(`{"age": {"years": 3}}`), &req)
	assert.Error(t, err)
}

func TestMetaValueAndScan(t *testing.T) {
	m := Meta{Name: " Bob ", TableID: "7", RemainingSeats: intPtr(3)}

	v, err := m.Value()
	require.NoError(t, err)
	require.IsType(t, "", v)

	var back Meta
	require.NoError(t, back.Scan([]byte(v.(string))))
	assert.Equal(t, FlexString("Bob"), back.Name)
	assert.Equal(t, FlexString("7"), back.TableID)
	require.NotNil(t, back.RemainingSeats)
	assert.Equal(t, 3, *back.RemainingSeats)
}

func TestMetaValueEmptyIsNull(t *testing.T) {
	v, err := Meta{Name: "   "}.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestMetaScanToleratesGarbage(t *testing.T) {
	m := Meta{Name: "stale"}
	require.NoError(t, m.Scan("not json"))
	assert.True(t, m.IsZero())

	require.NoError(t, m.Scan(nil))
	assert.True(t, m.IsZero())

	assert.Error(t, m.Scan(42))
}

func TestMetaScanKeepsFieldsAroundBadSeatCount(t *testing.T) {
	var m Meta
	require.NoError(t, m.Scan(`{"name":"Old","tableId":"5","masterName":"Ann","remainingSeats":"3"}`))
	assert.Equal(t, FlexString("Old"), m.Name)
	assert.Equal(t, FlexString("5"), m.TableID)
	assert.Equal(t, FlexString("Ann"), m.MasterName)
	require.NotNil(t, m.RemainingSeats)
	assert.Equal(t, 3, *m.RemainingSeats)

	require.NoError(t, m.Scan(`{"tableId":5,"remainingSeats":2.0}`))
	assert.Equal(t, FlexString("5"), m.TableID)
	require.NotNil(t, m.RemainingSeats)
	assert.Equal(t, 2, *m.RemainingSeats)

	require.NoError(t, m.Scan(`{"tableId":"5","remainingSeats":"many"}`))
	assert.Equal(t, FlexString("5"), m.TableID)
	assert.Nil(t, m.RemainingSeats)

	require.NoError(t, m.Scan(`{"tableId":"5","remainingSeats":2.5,"name":{"first":"X"}}`))
	assert.Equal(t, FlexString("5"), m.TableID)
	assert.Empty(t, m.Name)
	assert.Nil(t, m.RemainingSeats)
}

func TestMetaNormalizeDropsNegativeSeats(t *testing.T) {
	m := Meta{RemainingSeats: intPtr(-1)}.Normalize()
	assert.Nil(t, m.RemainingSeats)
}

func TestOfferingSelectable(t *testing.T) {
	assert.False(t, (&Offering{}).Selectable())
	assert.False(t, (&Offering{RemainingSeats: intPtr(0)}).Selectable())
	assert.True(t, (&Offering{RemainingSeats: intPtr(2)}).Selectable())
}

func TestRegistrationEffectiveTableAndOrphan(t *testing.T) {
	legacy := Registration{Meta: Meta{TableID: "5"}}
	assert.Equal(t, "5", legacy.EffectiveTableID())
	assert.True(t, legacy.Orphaned())

	linked := Registration{TableID: strPtr("3"), Meta: Meta{TableID: "5"}}
	assert.Equal(t, "3", linked.EffectiveTableID())
	assert.False(t, linked.Orphaned())

	none := Registration{}
	assert.Equal(t, "", none.EffectiveTableID())
	assert.False(t, none.Orphaned())
}

func TestRegistrationDisplayNameAndContact(t *testing.T) {
	r := Registration{Username: "ann_tg", Meta: Meta{Age: "14"}}
	assert.Equal(t, "ann_tg", r.DisplayName())
	assert.Equal(t, "14", r.ContactInfo())

	r.FirstName, r.LastName = "Ann", "Lee"
	assert.Equal(t, "Ann Lee", r.DisplayName())

	r.Meta.Name = "Annie"
	r.Contact = "@annie"
	assert.Equal(t, "Annie", r.DisplayName())
	assert.Equal(t, "@annie", r.ContactInfo())

	assert.Equal(t, "(no name)", (&Registration{}).DisplayName())
}

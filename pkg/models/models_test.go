package models

import (
	"encoding/json"
	"errors"
	"testing"

	"p2pmessage/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(b byte) AgentKey {
	var k AgentKey
	for i := range k {
		k[i] = b
	}
	return k
}

func TestAgentKeyTextRoundTrip(t *testing.T) {
	k := key(0xab)
	parsed, err := ParseAgentKey(k.String())
	require.NoError(t, err)
	assert.Equal(t, k, parsed)

	_, err = ParseAgentKey("abc")
	require.Error(t, err)

	// keys work as JSON map keys
	raw, err := json.Marshal(map[AgentKey]int{k: 1})
	require.NoError(t, err)
	var back map[AgentKey]int
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, 1, back[k])
}

func TestMessageHashIsStable(t *testing.T) {
	m := Message{Author: key(1), Receiver: key(2), Payload: TextPayload("hi"), TimeSent: 100}
	h1, err := m.Hash()
	require.NoError(t, err)
	h2, err := m.Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	m2 := m
	m2.Payload = TextPayload("hi!")
	h3, err := m2.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestReceiptHashDiffersFromID(t *testing.T) {
	m := Message{Author: key(1), Receiver: key(2), Payload: TextPayload("x"), TimeSent: 7}
	mh, err := m.Hash()
	require.NoError(t, err)
	r := Receipt{ID: mh, Status: Delivered(9)}
	rh, err := r.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, mh, rh)
}

func TestPayloadTypeMatches(t *testing.T) {
	text := TextPayload("hello")
	image := FilePayload(FileMetadata{FileName: "a.png"}, FileType{Kind: FileImage})
	video := FilePayload(FileMetadata{FileName: "a.mp4"}, FileType{Kind: FileVideo})
	other := FilePayload(FileMetadata{FileName: "a.pdf"}, FileType{Kind: FileOther})

	tests := []struct {
		pt                        PayloadType
		text, image, video, other bool
	}{
		{PayloadTypeAll, true, true, true, true},
		{PayloadTypeText, true, false, false, false},
		{PayloadTypeMedia, false, true, true, false},
		{PayloadTypeFile, false, true, true, true},
		{PayloadTypeOther, false, false, false, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.pt), func(t *testing.T) {
			assert.Equal(t, tt.text, tt.pt.Matches(text))
			assert.Equal(t, tt.image, tt.pt.Matches(image))
			assert.Equal(t, tt.video, tt.pt.Matches(video))
			assert.Equal(t, tt.other, tt.pt.Matches(other))
		})
	}
}

func TestPayloadInputBuild(t *testing.T) {
	p, fb, err := PayloadInput{Kind: PayloadText, Text: "yo"}.Build()
	require.NoError(t, err)
	assert.Nil(t, fb)
	assert.Equal(t, "yo", p.Text)

	p, fb, err = PayloadInput{Kind: PayloadFile, FileName: "cat.png", FileType: FileImage, Thumbnail: []byte{1}, Bytes: []byte("png")}.Build()
	require.NoError(t, err)
	require.NotNil(t, fb)
	assert.Equal(t, []byte("png"), fb.Data)
	assert.Equal(t, int64(3), p.Metadata.FileSize)
	assert.Equal(t, HashBytes([]byte("png")), p.Metadata.FileHash)
	assert.True(t, PayloadTypeMedia.Matches(p))

	_, _, err = PayloadInput{Kind: PayloadFile, FileName: "empty.bin"}.Build()
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))

	_, _, err = PayloadInput{Kind: PayloadFile, FileName: "x", Bytes: []byte("a"), FileHash: "beef"}.Build()
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
}

func TestDayWindow(t *testing.T) {
	day := TimestampFromSeconds(86400*3 + 500)
	start, end := day.DayWindow()
	assert.Equal(t, int64(86400*3), start)
	assert.Equal(t, int64(86400*3+86399), end)

	assert.Equal(t, int64(-1), Timestamp(-1).Seconds())
}

func TestFilterValidate(t *testing.T) {
	ok := FilterByBatch{Conversant: key(3), BatchSize: 10, PayloadType: PayloadTypeAll}
	require.NoError(t, ok.Validate())

	bad := ok
	bad.BatchSize = 0
	assert.True(t, errors.Is(bad.Validate(), apperr.ErrInvalidInput))

	bad = ok
	bad.Conversant = AgentKey{}
	assert.True(t, errors.Is(bad.Validate(), apperr.ErrInvalidInput))

	var f FilterByBatch
	require.NoError(t, json.Unmarshal([]byte(`{"conversant":"`+key(3).String()+`","batch_size":5,"payload_type":"media"}`), &f))
	assert.Equal(t, PayloadTypeMedia, f.PayloadType)
}

func TestCursorTokenRoundTrip(t *testing.T) {
	c := Cursor{Timestamp: 42, LastID: ContentHash(key(9))}
	back, err := DecodeCursor(EncodeCursor(c))
	require.NoError(t, err)
	assert.Equal(t, c, *back)

	none, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestPayloadValidateFileKinds(t *testing.T) {
	ok := FilePayload(FileMetadata{FileName: "a.png", FileSize: 3}, FileType{Kind: FileImage})
	require.NoError(t, ok.Validate())
	assert.Equal(t, FileImage, ok.Metadata.FileType.Kind)

	mismatch := FilePayload(FileMetadata{FileName: "a.pdf", FileType: FileType{Kind: FileOther}}, FileType{Kind: FileImage})
	assert.True(t, errors.Is(mismatch.Validate(), apperr.ErrInvalidInput))

	huge := FilePayload(FileMetadata{FileName: "big", FileSize: MaxSafeInt + 1}, FileType{Kind: FileOther})
	assert.True(t, errors.Is(huge.Validate(), apperr.ErrInvalidInput))

	negative := FilePayload(FileMetadata{FileName: "neg", FileSize: -1}, FileType{Kind: FileOther})
	assert.True(t, errors.Is(negative.Validate(), apperr.ErrInvalidInput))
}

func TestReceiptSignalAlwaysCarriesMap(t *testing.T) {
	raw, err := json.Marshal(ReceiptsArrived(nil))
	require.NoError(t, err)
	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.JSONEq(t, `{}`, string(out["receipts"]))
}

func TestSignalNames(t *testing.T) {
	assert.Equal(t, "P2P_TYPING_SIGNAL", Typing(key(1), true).Name())
	assert.Equal(t, "RECEIVE_P2P_RECEIPT", ReceiptsArrived(nil).Name())
	assert.Equal(t, "RECEIVE_P2P_MESSAGE", MessageArrived(HashedMessage{}, HashedReceipt{}).Name())
}

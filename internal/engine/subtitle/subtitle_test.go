package subtitle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wantText = "Selamat pagi semua. Hari ini kita belajar Go. Mari mulai."

const vttFixture = `WEBVTT
Kind: captions
Language: id

NOTE produced by hand

00:00:01.000 --> 00:00:03.500 align:start position:0%
Selamat pagi
semua.

00:03.500 --> 00:06.000
Hari ini kita <c>belajar</c> Go.

00:00:06,000 --> 00:00:08.250 line:90%
Mari mulai.
`

const srtFixture = `1
00:00:01,000 --> 00:00:03,500
Selamat pagi
semua.

2
00:00:03,500 --> 00:00:06,000
Hari ini kita belajar Go.

3
00:00:06,000 --> 00:00:08,250
Mari mulai.
`

const ttmlFixture = `<?xml version="1.0" encoding="utf-8"?>
<tt xmlns="http://www.w3.org/ns/ttml"><body><div>
<p begin="00:00:01.000" end="00:00:03.500">Selamat pagi<br/>
   semua.</p>
<p begin="00:00:03.500" end="00:00:06.000"><span>Hari ini kita belajar Go.</span></p>
<p begin="6s" dur="2.25s">Mari mulai.</p>
</div></body></tt>`

const json3Fixture = `{"wireMagic":"pb3","events":[
 {"tStartMs":0,"dDurationMs":8250,"id":1},
 {"tStartMs":1000,"dDurationMs":2500,"segs":[{"utf8":"Selamat "},{"utf8":"pagi semua."}]},
 {"tStartMs":3500,"dDurationMs":2500,"segs":[{"utf8":"Hari ini kita belajar Go."}]},
 {"tStartMs":5900,"dDurationMs":100,"segs":[{"utf8":"\n"}]},
 {"tStartMs":6000,"dDurationMs":2250,"segs":[{"utf8":"Mari mulai."}]}
]}`

const srv3Fixture = `<?xml version="1.0" encoding="utf-8" ?><timedtext format="3">
<head><pen id="1" fc="#FFFFFF"/><wp id="1" ap="7"/></head>
<body>
<p t="1000" d="2500" w="1"><s ac="0">Selamat</s><s t="400" ac="0"> pagi</s><s t="900"> semua.</s></p>
<p t="3500" d="2500" w="1">Hari ini kita belajar Go.</p>
<p t="5900" d="100" w="1" a="1">
</p>
<p t="6000" d="2250" w="1">Mari mulai.</p>
</body></timedtext>`

const rollingVTTFixture = `WEBVTT
Kind: captions

00:00:00.000 --> 00:00:02.000 align:start position:0%
halo semua

00:00:02.000 --> 00:00:04.000 align:start position:0%
halo semua
hari ini

00:00:04.000 --> 00:00:06.000 align:start position:0%
hari ini
kita belajar

00:00:06.000 --> 00:00:08.000 align:start position:0%
kita belajar
`

func TestParsersPlainText(t *testing.T) {
	tests := []struct {
		name  string
		parse func(string) []Segment
		raw   string
	}{
		{"vtt", ParseVTT, vttFixture},
		{"srt", ParseSRT, srtFixture},
		{"ttml", ParseTTML, ttmlFixture},
		{"json3", ParseJSON3, json3Fixture},
		{"srv3", ParseSRV3, srv3Fixture},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs := tt.parse(tt.raw)
			require.Len(t, segs, 3)
			assert.Equal(t, wantText, PlainText(segs))
			assert.InDelta(t, 1.0, segs[0].Start, 1e-9)
			assert.InDelta(t, 2.5, segs[0].Duration, 1e-9)
			assert.InDelta(t, 8.25, segs[2].End(), 1e-9)
		})
	}
}

func TestVTTRollingCaptions(t *testing.T) {
	segs := ParseVTT(rollingVTTFixture)
	require.Len(t, segs, 3)
	assert.Equal(t, "halo semua hari ini kita belajar", PlainText(segs))
	assert.Equal(t, "hari ini", segs[1].Text)
	assert.InDelta(t, 8.0, segs[2].End(), 1e-9, "a fully repeated cue extends the previous segment")
	assert.Equal(t, 8.0, EstimatedDuration(segs))
}

func TestParsersMalformed(t *testing.T) {
	garbage := "this is not a caption file\n\n--> nope\n"
	assert.Empty(t, ParseVTT(garbage))
	assert.Empty(t, ParseSRT(garbage))
	assert.Empty(t, ParseTTML(garbage))
	assert.Empty(t, ParseJSON3(garbage))
	assert.Empty(t, ParseJSON3(`{"events": "wrong"}`))
	assert.Empty(t, ParseSRV3(garbage))
	assert.Empty(t, ParseSRV3(`<timedtext><body><p d="100">no start</p></body></timedtext>`))
	assert.Empty(t, ParseVTT(""))
}

func TestSRTRoundTrip(t *testing.T) {
	orig := ParseSRT(srtFixture)
	again := ParseSRT(ToSRT(orig))
	require.Len(t, again, len(orig))
	for i := range orig {
		assert.InDelta(t, orig[i].Start, again[i].Start, 0.001)
		assert.InDelta(t, orig[i].End(), again[i].End(), 0.001)
		assert.Equal(t, orig[i].Text, again[i].Text)
	}
}

func TestToSRT(t *testing.T) {
	out := ToSRT([]Segment{
		{Start: 3661.5, Duration: 2, Text: "one"},
		{Start: 4000, Duration: 1, Text: "   "},
		{Start: 4001, Duration: 0.0004, Text: "two"},
	})
	want := "1\n01:01:01,500 --> 01:01:03,500\none\n\n" +
		"2\n01:06:41,000 --> 01:06:41,000\ntwo\n\n"
	assert.Equal(t, want, out)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"00:00:01.500", 1.5, true},
		{"01:02:03,250", 3723.25, true},
		{"02:03.5", 123.5, true},
		{"12.5s", 12.5, true},
		{"", 0, false},
		{"abc", 0, false},
		{"1:2:3:4", 0, false},
		{"00:xx:01.0", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestEstimatedDuration(t *testing.T) {
	segs := []Segment{
		{Start: 0, Duration: 5},
		{Start: 100.2, Duration: 10.4},
		{Start: 50, Duration: 1},
	}
	assert.Equal(t, 111.0, EstimatedDuration(segs))
	assert.Equal(t, 0.0, EstimatedDuration(nil))
}

func TestParseByExtension(t *testing.T) {
	assert.Len(t, ParseByExtension("vtt", vttFixture), 3)
	assert.Len(t, ParseByExtension(".SRT", srtFixture), 3)
	assert.Len(t, ParseByExtension("ttml", ttmlFixture), 3)
	assert.Len(t, ParseByExtension("json3", json3Fixture), 3)
	assert.Len(t, ParseByExtension("srv3", srv3Fixture), 3)

	// Unknown extension: VTT first, SRT second.
	assert.Len(t, ParseByExtension("srv9", vttFixture), 3)
	assert.Len(t, ParseByExtension("", srtFixture), 3)
	assert.Empty(t, ParseByExtension("bin", "garbage"))
}

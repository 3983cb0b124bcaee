// Copyright 2026 seqfuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

import (
	"bytes"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeData(t *testing.T) {
	t.Parallel()
	target := initTargetTest(t)
	r := rand.New(rand.NewSource(0))
	for i := 0; i < 1e4; i++ {
		data := make([]byte, r.Intn(8))
		for i := range data {
			if r.Intn(2) == 0 {
				data[i] = byte(r.Intn(256))
			} else {
				data[i] = "ab'\\\n\t "[r.Intn(7)]
			}
		}
		p := &Prog{Target: target}
		p.Calls = []*Call{
			target.MakeCall("expect_eq", MakeData(data), MakeData(data)),
		}
		text := p.Serialize()
		p1, err := target.Deserialize(text, Strict)
		if err != nil {
			t.Fatalf("failed to deserialize %q -> %s: %v", data, text, err)
		}
		data1 := p1.Calls[0].Args[0].(*DataArg).Data
		if !bytes.Equal(data, data1) {
			t.Fatalf("corrupted data %q -> %s -> %q", data, text, data1)
		}
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	target := initTargetTest(t)
	tests := []string{
		"r0 = topen(T_RDWR) (guard: 1)\n" +
			"r1 = twrite(r0, 'hello\\n')\n" +
			"expect_eq(r1, 6)\n" +
			"r2 = tread(r0)\n" +
			"expect_eq(r2, \"68656c6c6f0a\")\n" +
			"tclose(r0)\n",
		"r0 = topen(0)\n" +
			"twrite(r0, nil) (errno: -3)\n" +
			"tsync(r0)\n" +
			"tclose(r0)\n",
		"r0 = buf_fill(255, 3)\n" +
			"expect_eq(r0, \"ffffff\")\n" +
			"expect_ne(-1, 18446744073709551615)\n",
	}
	for i, test := range tests {
		p, err := target.Deserialize([]byte(test), Strict)
		require.NoError(t, err, "test #%v", i)
		p1, err := target.Deserialize(p.Serialize(), Strict)
		require.NoError(t, err)
		assert.Equal(t, string(p.Serialize()), string(p1.Serialize()))
		assert.Equal(t, p.String(), p1.String())
	}
}

func TestSerializeCanonical(t *testing.T) {
	target := initTargetTest(t)
	// Unused results are not bound and variables are renumbered.
	p, err := target.Deserialize([]byte(`
# comment
r5 = topen(T_RDONLY)
r7 = twrite(r5, "0102")   # trailing comment
r9 = tread(r5)
tclose(r5)
`), Strict)
	require.NoError(t, err)
	assert.Equal(t, "r0 = topen(T_RDONLY)\n"+
		"twrite(r0, \"0102\")\n"+
		"tread(r0)\n"+
		"tclose(r0)\n", string(p.Serialize()))
	assert.Equal(t, "topen-twrite-tread-tclose", p.String())
}

func TestDeserializeNonStrict(t *testing.T) {
	target := initTargetTest(t)
	reply := "Here is the program you asked for:\n" +
		"```\n" +
		"  r0 = topen(T_RDWR);  \n" +
		"// write something\n" +
		"twrite(r0, \"plain text\");\n" +
		"tclose(r0);\n" +
		"return 66;\n" +
		"```\n" +
		"It opens the file, writes and closes it.\n"
	_, err := target.Deserialize([]byte(reply), Strict)
	assert.Error(t, err)
	p, err := target.Deserialize([]byte(reply), NonStrict)
	require.NoError(t, err)
	assert.Equal(t, "r0 = topen(T_RDWR)\ntwrite(r0, 'plain text')\ntclose(r0)\n", string(p.Serialize()))
}

func TestDeserializeErrors(t *testing.T) {
	target := initTargetTest(t)
	tests := []struct {
		prog string
		kind string
		line int
		msg  string
	}{
		{"topen(0", "syntax", 1, "unexpected eof"},
		{"topen(0) junk", "syntax", 1, "tailing data"},
		{"\ntwrite(nil, 'abc)", "syntax", 2, "unterminated string"},
		{"twrite(nil, \"zz\")", "syntax", 1, "bad hex data"},
		{"expect_eq('\\q', nil)", "syntax", 1, "unknown escape"},
		{"topen(0) (color: 1)", "syntax", 1, "unknown call property"},
		{"topen(0)\nfoo(1)", "link", 2, "unknown op foo"},
		{"topen(T_WRONLY)", "link", 1, "unknown constant T_WRONLY"},
		{"tread(r3)", "type", 1, "undefined variable r3"},
		{"topen(0, 1)", "type", 1, "wrong number of arguments"},
		{"r0 = topen(0)\ntwrite(r0, 1)", "type", 2, "want buffer, got integer"},
		{"topen('x')", "type", 1, "want int, got data"},
		{"r0 = buf_len('a')\ntread(r0)", "type", 2, "want tfile, got int"},
		{"r0 = topen(0)\nr1 = tsync(r0)", "type", 2, "returns nothing"},
		{"r0 = topen(0)\ntclose(r0)\ntread(r0)", "type", 3, "after release"},
		{"r0 = topen(0)\ntclose(r0)\ntclose(r0)", "type", 3, "after release"},
		{"r0 = topen(0)\nr1 = tchild(r0, 0)\ntclose(r1)", "type", 3, "borrowed handle"},
		{"r0 = topen(0)\nr1 = topen(0)\ntadopt(r0, r1)\ntclose(r1)", "type", 4, "owned by another object"},
		{"topen(0) (guard: 66)", "type", 1, "collides with the success sentinel"},
	}
	for _, test := range tests {
		t.Run(test.prog, func(t *testing.T) {
			_, err := target.Deserialize([]byte(test.prog), Strict)
			require.Error(t, err)
			assert.Contains(t, err.Error(), test.msg)
			var syntaxErr *SyntaxError
			var linkErr *LinkError
			var typeErr *TypeError
			switch test.kind {
			case "syntax":
				require.True(t, errors.As(err, &syntaxErr), "%T", err)
				assert.Equal(t, test.line, syntaxErr.Line)
			case "link":
				require.True(t, errors.As(err, &linkErr), "%T", err)
				assert.Equal(t, test.line, linkErr.Line)
			case "type":
				require.True(t, errors.As(err, &typeErr), "%T", err)
				assert.Equal(t, test.line, typeErr.Line)
			}
		})
	}
}

func TestDeserializeValidUses(t *testing.T) {
	target := initTargetTest(t)
	for _, text := range []string{
		// NULL handles are accepted.
		"tread(nil)",
		// An adopted child stays usable, only its release is a bug.
		"r0 = topen(0)\nr1 = topen(0)\ntadopt(r0, r1)\ntwrite(r1, '')\ntclose(r0)",
		"r0 = topen(0)\nr1 = tchild(r0, 0)\ntread(r1)\ntclose(r0)",
		"r0 = topen(-0x10)\ntclose(r0)",
	} {
		_, err := target.Deserialize([]byte(text), Strict)
		assert.NoError(t, err, "%v", text)
	}
}

func FuzzDeserialize(f *testing.F) {
	for _, seed := range []string{
		"r0 = topen(T_RDWR) (guard: 1)\ntwrite(r0, 'abc')\ntclose(r0)\n",
		"expect_eq(\"00ff\", buf_fill)\n",
		"r0 = buf_slice('abcdef', 1, 2)\nexpect_eq(r0, 'bc') (errno: 0)\n",
	} {
		f.Add([]byte(seed))
	}
	f.Fuzz(func(t *testing.T, data []byte) {
		target := initTargetTest(t)
		for _, mode := range []DeserializeMode{Strict, NonStrict} {
			p, err := target.Deserialize(data, mode)
			if err != nil {
				continue
			}
			text := p.Serialize()
			p1, err := target.Deserialize(text, Strict)
			if err != nil {
				t.Fatalf("failed to parse serialized program: %v\n%s", err, text)
			}
			if text1 := p1.Serialize(); !bytes.Equal(text, text1) {
				t.Fatalf("serialization is not stable:\n%s\n%s", text, text1)
			}
		}
	})
}

func TestQuoteText(t *testing.T) {
	assert.Equal(t, `'it\'s\n\ta \\ path'`, quoteText([]byte("it's\n\ta \\ path")))
	assert.True(t, isText([]byte("")))
	assert.False(t, isText([]byte("\x00")))
	assert.True(t, strings.HasPrefix(FormatValue(bytes.Repeat([]byte{'a'}, 100)), "'aaaa"))
	assert.Equal(t, "\"0001\"", FormatValue([]byte{0, 1}))
	assert.Equal(t, "nil", FormatValue(nil))
	assert.Equal(t, "-3", FormatValue(int64(-3)))
}

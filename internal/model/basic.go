package model

import (
	"math/bits"
	"strconv"
	"strings"

	"main/pkg/exception"

	"github.com/yanun0323/errors"
)

// MicrosScale is the fixed decimal scale for every monetary value.
// A Price of 43_252_300_000 reads as 43252.30.
const MicrosScale = 6

// UnitMicros is one whole unit at MicrosScale.
const UnitMicros int64 = 1_000_000

// Price is a scaled integer in micros.
type Price int64

func (p Price) AppendString(buf []byte) []byte {
	return appendScaledInt(buf, int64(p), MicrosScale)
}

func (p Price) String() string {
	return string(p.AppendString(nil))
}

// Quantity is a scaled integer in micros. Signed: positive means long.
type Quantity int64

func (q Quantity) AppendString(buf []byte) []byte {
	return appendScaledInt(buf, int64(q), MicrosScale)
}

func (q Quantity) String() string {
	return string(q.AppendString(nil))
}

// Abs returns the magnitude of the quantity.
func (q Quantity) Abs() Quantity {
	if q < 0 {
		return -q
	}
	return q
}

// Notional is a scaled integer in micros, quote-currency denominated.
type Notional int64

func (n Notional) AppendString(buf []byte) []byte {
	return appendScaledInt(buf, int64(n), MicrosScale)
}

func (n Notional) String() string {
	return string(n.AppendString(nil))
}

// Bps is a value in basis points. 10000 = 100%.
type Bps int64

func appendScaledInt(buf []byte, value int64, scale int) []byte {
	if scale <= 0 {
		return strconv.AppendInt(buf, value, 10)
	}

	neg := value < 0
	u := uint64(value)
	if neg {
		u = uint64(^value) + 1
	}

	var tmp [32]byte
	digits := strconv.AppendUint(tmp[:0], u, 10)

	if neg {
		buf = append(buf, '-')
	}

	if len(digits) <= scale {
		buf = append(buf, '0', '.')
		for i := 0; i < scale-len(digits); i++ {
			buf = append(buf, '0')
		}
		buf = append(buf, digits...)
		return buf
	}

	idx := len(digits) - scale
	buf = append(buf, digits[:idx]...)
	buf = append(buf, '.')
	buf = append(buf, digits[idx:]...)
	return buf
}

// ParseMicros converts a decimal string like "43252.30" into micros.
func ParseMicros(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.Wrap(exception.ErrConfigInvalid, "empty decimal string")
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	intPart := s
	fracPart := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		intPart, fracPart = s[:idx], s[idx+1:]
	}
	if intPart == "" && fracPart == "" {
		return 0, errors.Wrapf(exception.ErrConfigInvalid, "malformed decimal %q", s)
	}
	if len(fracPart) > MicrosScale {
		fracPart = fracPart[:MicrosScale]
	}

	whole := int64(0)
	if intPart != "" {
		v, err := strconv.ParseInt(intPart, 10, 64)
		if err != nil {
			return 0, errors.Wrapf(exception.ErrConfigInvalid, "malformed decimal %q", s)
		}
		whole = v
	}

	frac := int64(0)
	if fracPart != "" {
		v, err := strconv.ParseInt(fracPart, 10, 64)
		if err != nil {
			return 0, errors.Wrapf(exception.ErrConfigInvalid, "malformed decimal %q", s)
		}
		for i := len(fracPart); i < MicrosScale; i++ {
			v *= 10
		}
		frac = v
	}

	micros := whole*UnitMicros + frac
	if neg {
		micros = -micros
	}
	return micros, nil
}

// MulDiv computes a*b/c through a 128-bit intermediate so scaled
// multiplications never overflow int64 mid-calculation.
func MulDiv(a, b, c int64) int64 {
	if c == 0 {
		return 0
	}

	neg := false
	ua, ub, uc := uint64(a), uint64(b), uint64(c)
	if a < 0 {
		neg = !neg
		ua = uint64(-a)
	}
	if b < 0 {
		neg = !neg
		ub = uint64(-b)
	}
	if c < 0 {
		neg = !neg
		uc = uint64(-c)
	}

	hi, lo := bits.Mul64(ua, ub)
	if hi >= uc {
		// quotient would not fit in 64 bits, saturate
		if neg {
			return -int64(^uint64(0) >> 1)
		}
		return int64(^uint64(0) >> 1)
	}
	quo, _ := bits.Div64(hi, lo, uc)

	out := int64(quo)
	if neg {
		out = -out
	}
	return out
}

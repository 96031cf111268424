package util

import (
	"runtime"
	"strconv"

	_ "go.uber.org/automaxprocs"
)

// ConcurrencyLimit is a flag value for the number of workers a parallel walk
// may fan out to. The zero value and "auto" resolve to GOMAXPROCS.
type ConcurrencyLimit int

func GoMaxProcsConcurrencyLimit() *ConcurrencyLimit {
	lim := ConcurrencyLimit(runtime.GOMAXPROCS(-1))
	return &lim
}

// Value resolves the limit to a concrete worker count, never below one.
func (c ConcurrencyLimit) Value() int {
	if c < 1 {
		return runtime.GOMAXPROCS(-1)
	}
	return int(c)
}

func (c *ConcurrencyLimit) String() string {
	if *c == 0 {
		return "auto"
	}
	return strconv.Itoa(int(*c))
}

func (c *ConcurrencyLimit) Set(v string) (err error) {
	var p int
	if v == "" || v == "auto" {
		p = runtime.GOMAXPROCS(-1)
	} else {
		p, err = strconv.Atoi(v)
	}
	if err != nil {
		return err
	}
	if p < 1 {
		*c = 1
		return
	}
	*c = ConcurrencyLimit(p)
	return nil
}

func (c *ConcurrencyLimit) UnmarshalText(text []byte) error {
	return c.Set(string(text))
}

func (c *ConcurrencyLimit) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

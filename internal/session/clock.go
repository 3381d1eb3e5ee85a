package session

import "time"

// Clock abstracts blocking waits so retry and poll loops can be driven
// deterministically in tests without real delays.
type Clock interface {
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock sleeps on the wall clock.
var SystemClock Clock = realClock{}

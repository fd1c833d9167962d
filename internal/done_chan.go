package internal

import "sync"

type DoneChan chan struct{}

type DoneFunc func() DoneChan

// WrapWaitGroup adapts a sync.WaitGroup to the DoneChan idiom other
// components in this package use for shutdown coordination.
func WrapWaitGroup(wg *sync.WaitGroup) DoneChan {
	ret := make(DoneChan)
	go func() {
		wg.Wait()
		close(ret)
	}()
	return ret
}

func Combine(first DoneChan, second DoneChan) DoneChan {
	ret := make(DoneChan)
	go func() {
		<-first
		<-second
		close(ret)
	}()
	return ret
}

package notebook_test

import (
	"testing"

	"github.com/seantiz/cellbook/internal/model"
	"github.com/seantiz/cellbook/internal/notebook"
)

func TestCellBrokerSingleSubscriber(t *testing.T) {
	b := notebook.NewCellBroker()
	ch, unsub := b.Subscribe()
	defer unsub()

	for i := int64(1); i <= 3; i++ {
		b.Publish(model.Cell{ID: i})
	}
	b.Close()

	var got []int64
	for c := range ch {
		got = append(got, c.ID)
	}

	if len(got) != 3 {
		t.Fatalf("got %d cells, want 3", len(got))
	}
	for i, id := range got {
		if id != int64(i+1) {
			t.Errorf("cell[%d].ID = %d, want %d", i, id, i+1)
		}
	}
}

func TestCellBrokerMultipleSubscribers(t *testing.T) {
	b := notebook.NewCellBroker()
	ch1, unsub1 := b.Subscribe()
	defer unsub1()
	ch2, unsub2 := b.Subscribe()
	defer unsub2()

	b.Publish(model.Cell{ID: 7, Code: "x = 1"})
	b.Close()

	for i, ch := range []<-chan model.Cell{ch1, ch2} {
		var got []model.Cell
		for c := range ch {
			got = append(got, c)
		}
		if len(got) != 1 || got[0].ID != 7 {
			t.Errorf("subscriber %d got %v, want one cell with id 7", i+1, got)
		}
	}
}

func TestCellBrokerLateSubscriberGetsClosed(t *testing.T) {
	b := notebook.NewCellBroker()
	b.Close()

	ch, unsub := b.Subscribe()
	defer unsub()

	if _, ok := <-ch; ok {
		t.Error("late subscriber should get a closed channel")
	}
}

func TestCellBrokerUnsubscribeStopsDelivery(t *testing.T) {
	b := notebook.NewCellBroker()
	ch, unsub := b.Subscribe()

	unsub()
	b.Publish(model.Cell{ID: 1})

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after unsubscribe")
	}
	if n := b.Subscribers(); n != 0 {
		t.Errorf("Subscribers() = %d, want 0", n)
	}

	// A second unsubscribe after Close must not panic.
	b.Close()
	unsub()
}

func TestCellBrokerDropsForSlowSubscriber(t *testing.T) {
	b := notebook.NewCellBroker()
	ch, unsub := b.Subscribe()
	defer unsub()

	for i := range 200 {
		b.Publish(model.Cell{ID: int64(i)})
	}
	b.Close()

	var n int
	for range ch {
		n++
	}
	if n == 0 || n >= 200 {
		t.Errorf("received %d cells, want some but not all", n)
	}
}

func TestCellBrokerPublishAfterCloseIsNoop(t *testing.T) {
	b := notebook.NewCellBroker()
	b.Close()
	b.Publish(model.Cell{ID: 1})
}

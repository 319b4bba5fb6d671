package actuator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func waitForSnapshot(cache *StateCache, timeout time.Duration) (Snapshot, bool) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s, ok := cache.Read(); ok {
			return s, true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return Snapshot{}, false
}

type blockingPublisher struct {
	fakePublisher
	release chan struct{}
}

func (b *blockingPublisher) Publish(topic string, payload []byte) error {
	<-b.release
	return b.fakePublisher.Publish(topic, payload)
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.topics)
}

func waitForPublishes(pub *fakePublisher, n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if pub.count() >= n {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestStatusConsumer(t *testing.T) {
	Convey("Given a state cache fed by a running consumer", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		cache := NewStateCache()
		consumer := NewStatusConsumer(cache, 4, newTestLogger(t))
		go consumer.Run(ctx)

		Convey("Reading before any message reports absence", func() {
			_, ok := cache.Read()
			So(ok, ShouldBeFalse)
		})

		Convey("A status message is installed exactly as received", func() {
			consumer.HandleMessage("esp8266/status", []byte(`{"servo1":"ok"}`))

			snapshot, ok := waitForSnapshot(cache, time.Second)
			So(ok, ShouldBeTrue)
			So(string(snapshot.Payload), ShouldEqual, `{"servo1":"ok"}`)
			So(snapshot.ReceivedAt.IsZero(), ShouldBeFalse)
		})

		Convey("Malformed messages are dropped and keep the previous snapshot", func() {
			consumer.Submit([]byte(`{"servo1":"ok"}`))
			_, ok := waitForSnapshot(cache, time.Second)
			So(ok, ShouldBeTrue)

			consumer.Submit([]byte(`not json`))
			consumer.Submit([]byte(`[1,2,3]`))
			consumer.Submit([]byte(`{"servo2":"busy"}`))

			deadline := time.Now().Add(time.Second)
			var latest Snapshot
			for time.Now().Before(deadline) {
				latest, _ = cache.Read()
				if string(latest.Payload) == `{"servo2":"busy"}` {
					break
				}
				time.Sleep(5 * time.Millisecond)
			}
			So(string(latest.Payload), ShouldEqual, `{"servo2":"busy"}`)
		})
	})

	Convey("Given a consumer that is not running", t, func() {
		consumer := NewStatusConsumer(NewStateCache(), 1, newTestLogger(t))

		Convey("Submissions beyond the queue capacity are dropped without blocking", func() {
			So(consumer.Submit([]byte(`{}`)), ShouldBeTrue)
			So(consumer.Submit([]byte(`{}`)), ShouldBeFalse)
		})
	})
}

func TestStatusRequesters(t *testing.T) {
	Convey("Given the MQTT requester", t, func() {
		pub := &fakePublisher{}
		r := NewMQTTStatusRequester(pub, "iot/servo/get_status", newTestLogger(t))

		Convey("It publishes a request message", func() {
			So(r.RequestStatus(context.Background()), ShouldBeNil)
			So(waitForPublishes(pub, 1, time.Second), ShouldBeTrue)
			So(pub.topics, ShouldResemble, []string{"iot/servo/get_status"})
			So(string(pub.payloads[0]), ShouldEqual, "1")
		})
	})

	Convey("Given the MQTT requester and a broker that is slow to acknowledge", t, func() {
		pub := &blockingPublisher{release: make(chan struct{})}
		r := NewMQTTStatusRequester(pub, "iot/servo/get_status", newTestLogger(t))

		Convey("RequestStatus does not wait for the acknowledgement", func() {
			done := make(chan error, 1)
			go func() { done <- r.RequestStatus(context.Background()) }()

			var err error
			select {
			case err = <-done:
			case <-time.After(500 * time.Millisecond):
				close(pub.release)
				t.Fatal("RequestStatus blocked on the publish")
			}
			So(err, ShouldBeNil)

			Convey("Calls while a request is outstanding do not queue more publishes", func() {
				So(r.RequestStatus(context.Background()), ShouldBeNil)
				So(r.RequestStatus(context.Background()), ShouldBeNil)

				close(pub.release)
				So(waitForPublishes(&pub.fakePublisher, 1, time.Second), ShouldBeTrue)
				time.Sleep(20 * time.Millisecond)
				So(pub.count(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given the HTTP requester and a controller", t, func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/status" {
				http.NotFound(w, r)
				return
			}
			w.Write([]byte(`{"servo3":"idle"}`))
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		log := newTestLogger(t)
		cache := NewStateCache()
		consumer := NewStatusConsumer(cache, 4, log)
		go consumer.Run(ctx)

		r := NewHTTPStatusRequester(server.URL, time.Second, consumer, log)

		Convey("The answer reaches the state cache", func() {
			So(r.RequestStatus(ctx), ShouldBeNil)

			snapshot, ok := waitForSnapshot(cache, 2*time.Second)
			So(ok, ShouldBeTrue)
			So(string(snapshot.Payload), ShouldEqual, `{"servo3":"idle"}`)
		})
	})
}

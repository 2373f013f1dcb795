package kafka

import (
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/require"
)

// 错误通道无人消费时内部缓冲写满后发送会永久阻塞，
// 这里把通道设成无缓冲，验证排空协程让连续发送不被卡住
func TestProducerDrainsErrors(t *testing.T) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = false
	config.ChannelBufferSize = 0

	mock := mocks.NewAsyncProducer(t, config)
	for i := 0; i < 3; i++ {
		mock.ExpectInputAndFail(sarama.ErrOutOfBrokers)
	}

	p := &Producer{asyncProducer: mock}
	go p.drainErrors()

	var sendErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 3; i++ {
			if err := p.SendGroupEvent("group-events", GroupEvent{
				Type:    "member.joined",
				GroupID: "group-1",
				UserID:  "user-1",
			}); err != nil {
				sendErr = err
				return
			}
		}
	}()

	select {
	case <-done:
		require.NoError(t, sendErr)
	case <-time.After(3 * time.Second):
		t.Fatal("发送被阻塞，错误通道未被排空")
	}
	require.NoError(t, p.Close())
}

func TestProducerSendSucceeds(t *testing.T) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = false

	mock := mocks.NewAsyncProducer(t, config)
	mock.ExpectInputAndSucceed()

	p := &Producer{asyncProducer: mock}
	go p.drainErrors()

	require.NoError(t, p.SendGroupEvent("group-events", GroupEvent{
		Type:    "created",
		GroupID: "group-1",
		UserID:  "user-1",
	}))
	require.NoError(t, p.Close())
}

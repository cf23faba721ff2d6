package bot

import (
	"sync"
	"time"

	"github.com/botlabs-gg/bulkmod/common"
	"github.com/jonas747/discordgo/v2"
)

// DeleteQueue deletes messages in the background, one worker per channel batching the ids it has queued up.
// Used for the trigger messages and temporary responses.
type DeleteQueue struct {
	mu         sync.Mutex
	channels   map[int64]*deleteQueueChannel
	deleteFunc func(channelID int64, ids []int64) error
}

func NewDeleteQueue(deleteFunc func(channelID int64, ids []int64) error) *DeleteQueue {
	return &DeleteQueue{
		channels:   make(map[int64]*deleteQueueChannel),
		deleteFunc: deleteFunc,
	}
}

// DeleteAfter queues the messages for deletion once d has passed
func (q *DeleteQueue) DeleteAfter(d time.Duration, channelID int64, ids ...int64) {
	time.AfterFunc(d, func() {
		q.DeleteMessages(channelID, ids...)
	})
}

func (q *DeleteQueue) DeleteMessages(channelID int64, ids ...int64) {
	if len(ids) == 0 {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if cq, ok := q.channels[channelID]; ok {
		cq.mu.Lock()
		exiting := cq.exiting
		if !exiting {
			for _, id := range ids {
				if !common.ContainsInt64Slice(cq.processing, id) && !common.ContainsInt64Slice(cq.queued, id) {
					cq.queued = append(cq.queued, id)
				}
			}
		}
		cq.mu.Unlock()

		if !exiting {
			return
		}
	}

	cq := &deleteQueueChannel{
		parent:    q,
		channelID: channelID,
		queued:    ids,
	}
	q.channels[channelID] = cq
	go cq.run()
}

type deleteQueueChannel struct {
	mu sync.Mutex

	parent    *DeleteQueue
	channelID int64
	exiting   bool

	queued     []int64
	processing []int64
}

func (cq *deleteQueueChannel) run() {
	for {
		cq.mu.Lock()
		cq.processing = nil

		if len(cq.queued) < 1 {
			cq.exiting = true
			cq.mu.Unlock()

			// a new worker may have been started for the channel after exiting was set
			cq.parent.mu.Lock()
			if cq.parent.channels[cq.channelID] == cq {
				delete(cq.parent.channels, cq.channelID)
			}
			cq.parent.mu.Unlock()
			return
		}

		if len(cq.queued) <= 100 {
			cq.processing = cq.queued
			cq.queued = nil
		} else {
			cq.processing = cq.queued[:100]
			cq.queued = cq.queued[100:]
		}

		batch := cq.processing
		cq.mu.Unlock()

		err := cq.parent.deleteFunc(cq.channelID, batch)
		if err != nil {
			logger.WithError(err).WithField("channel", cq.channelID).Error("delete queue failed deleting messages")
		}
	}
}

// deleteMessages is the default delete func, used by the bot's MessageDeleteQueue
func deleteMessages(channelID int64, ids []int64) error {
	var err error
	if len(ids) == 1 {
		err = common.BotSession.ChannelMessageDelete(channelID, ids[0])
	} else {
		err = common.BotSession.ChannelMessagesBulkDelete(channelID, ids)
	}

	if common.IsDiscordErr(err, discordgo.ErrCodeUnknownMessage) {
		return nil
	}

	return err
}

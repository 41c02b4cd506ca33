package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// NewRelicActor tags the New Relic transaction that nrgin started with the
// caller and hotel, and reports handler errors on it. It is a no-op when the
// agent is disabled.
func NewRelicActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		txn := nrgin.Transaction(c)
		if txn == nil {
			c.Next()
			return
		}

		actor := ActorFrom(c)
		txn.AddAttribute("userId", actor.UserID)
		txn.AddAttribute("role", string(actor.Role))
		txn.AddAttribute("hotelId", actor.HotelID)

		c.Next()

		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
		}
	}
}

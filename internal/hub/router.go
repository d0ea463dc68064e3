package hub

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"recipe-server/internal/logging"
	"recipe-server/internal/metrics"
)

// Frame types
const (
	TypeSubscribeRecipe   = "subscribe_recipe"
	TypeUnsubscribeRecipe = "unsubscribe_recipe"
	TypeRecipeUpdate      = "recipe_update"
	TypeForceLogout       = "force_logout"
	TypeError             = "error"
	TypeUnknown           = "unknown"
)

const msgInvalidFormat = "Invalid message format"

// Event is an outbound frame body. "type" is filled in when the caller leaves it out.
type Event map[string]any

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ErrorFrame encodes {"type":"error","message":message}.
func ErrorFrame(message string) []byte {
	out, _ := json.Marshal(errorFrame{Type: TypeError, Message: message})
	return out
}

// Router dispatches inbound frames into the subscription table and fans outbound
// events out to the registry and the table.
type Router struct {
	hub    *Hub
	topics *Topics
	log    zerolog.Logger
}

func NewRouter(h *Hub, t *Topics) *Router {
	return &Router{hub: h, topics: t, log: logging.Component("router")}
}

func (r *Router) Hub() *Hub { return r.hub }

func (r *Router) Topics() *Topics { return r.topics }

// Attach registers an open connection under its user.
func (r *Router) Attach(conn *Connection) error {
	if conn.State() != StateOpen {
		return fmt.Errorf("attach connection %d: state %s", conn.ID, conn.State())
	}
	r.hub.Register(conn.UserID(), conn)
	r.log.Debug().Uint64("conn", conn.ID).Str("user", conn.UserID()).Msg("connection registered")
	return nil
}

// Disconnect closes conn, then scrubs it from the registry and every topic.
// Closing first means a concurrent Register or Subscribe sees StateClosed and backs off.
// Safe to call any number of times.
func (r *Router) Disconnect(conn *Connection) {
	closed := conn.Close()
	if userID, ok := r.hub.Owner(conn); ok {
		r.hub.Unregister(userID, conn)
	}
	left := r.topics.UnsubscribeAll(conn)
	if closed {
		r.log.Debug().Uint64("conn", conn.ID).Str("user", conn.UserID()).Int("topics", left).Msg("connection closed")
	}
}

// Dispatch handles one inbound frame. Frames from connections that are not open are dropped.
// Only frames that are not JSON, or carry an unusable recipeId, earn an error frame; any
// other JSON value with a missing or unknown type is logged and ignored.
func (r *Router) Dispatch(conn *Connection, raw []byte) {
	if conn.State() != StateOpen {
		r.log.Debug().Uint64("conn", conn.ID).Str("state", conn.State().String()).Msg("dropping frame from connection that is not open")
		return
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		if !json.Valid(raw) {
			r.log.Debug().Err(err).Uint64("conn", conn.ID).Msg("malformed frame")
			metrics.WSInboundMessages.WithLabelValues("malformed").Inc()
			r.SendError(conn, msgInvalidFormat)
			return
		}
		fields = nil
	}

	msgType := stringField(fields, "type")
	switch msgType {
	case TypeSubscribeRecipe, TypeUnsubscribeRecipe:
		metrics.WSInboundMessages.WithLabelValues(msgType).Inc()
		id, err := ParseRecipeID(fields["recipeId"])
		if err != nil {
			r.log.Debug().Err(err).Uint64("conn", conn.ID).Str("type", msgType).Msg("bad recipe id")
			r.SendError(conn, msgInvalidFormat)
			return
		}
		if msgType == TypeSubscribeRecipe {
			if !r.topics.Subscribe(id, conn) {
				r.log.Debug().Uint64("conn", conn.ID).Str("recipe", string(id)).Msg("subscribe after close ignored")
				return
			}
		} else {
			r.topics.Unsubscribe(id, conn)
		}
		r.log.Debug().Uint64("conn", conn.ID).Str("user", conn.UserID()).Str("recipe", string(id)).Str("type", msgType).Msg("subscription changed")
	default:
		metrics.WSInboundMessages.WithLabelValues(TypeUnknown).Inc()
		r.log.Info().Uint64("conn", conn.ID).Str("user", conn.UserID()).Str("type", msgType).Msg("unknown message type")
	}
}

// stringField returns fields[key] when it is a JSON string, "" otherwise.
func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok || len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// SendError writes an error frame to conn without closing it.
func (r *Router) SendError(conn *Connection, message string) {
	if err := conn.Send(ErrorFrame(message)); err != nil {
		r.dropFailed([]*Connection{conn})
		return
	}
	metrics.WSFramesDelivered.WithLabelValues(TypeError).Inc()
}

// NotifyUser sends event to every open socket of userID and returns how many got it.
// A user without sockets is not an error.
func (r *Router) NotifyUser(userID string, event Event) (int, error) {
	frame := withDefaults(event, TypeUnknown)
	payload, err := json.Marshal(frame)
	if err != nil {
		return 0, fmt.Errorf("encode event for user %s: %w", userID, err)
	}
	delivered, failed := r.hub.SendToUser(userID, payload)
	r.dropFailed(failed)
	metrics.WSFramesDelivered.WithLabelValues(frameType(frame)).Add(float64(delivered))
	r.log.Debug().Str("user", userID).Str("type", frameType(frame)).Int("delivered", delivered).Msg("user notified")
	return delivered, nil
}

// ForceLogout tells every socket of userID that its session is gone.
func (r *Router) ForceLogout(userID, message string) int {
	n, err := r.NotifyUser(userID, Event{"type": TypeForceLogout, "message": message})
	if err != nil {
		r.log.Error().Err(err).Str("user", userID).Msg("force logout")
	}
	return n
}

// ForceLogoutToken ends only the sockets of userID that authenticated with tokenID.
// Other devices of the same user keep their sockets.
func (r *Router) ForceLogoutToken(userID, tokenID, message string) int {
	payload, err := json.Marshal(Event{"type": TypeForceLogout, "message": message})
	if err != nil {
		r.log.Error().Err(err).Str("user", userID).Msg("force logout")
		return 0
	}
	var targets []*Connection
	for _, c := range r.hub.Connections(userID) {
		if tokenID != "" && c.TokenID() == tokenID {
			targets = append(targets, c)
		}
	}
	delivered, failed := deliver(targets, payload)
	r.dropFailed(failed)
	metrics.WSFramesDelivered.WithLabelValues(TypeForceLogout).Add(float64(delivered))
	return delivered
}

// NotifyRecipeSubscribers publishes a recipe_update for recipeID. Callers must only invoke
// it after the change is committed, so clients can fetch what they are told about.
func (r *Router) NotifyRecipeSubscribers(recipeID any, event Event) (int, error) {
	id, err := RecipeIDOf(recipeID)
	if err != nil {
		return 0, err
	}
	frame := withDefaults(event, TypeRecipeUpdate)
	if _, ok := frame["recipeId"]; !ok {
		frame["recipeId"] = recipeID
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return 0, fmt.Errorf("encode event for recipe %s: %w", id, err)
	}
	delivered, failed := r.topics.Publish(id, payload)
	r.dropFailed(failed)
	metrics.WSFramesDelivered.WithLabelValues(frameType(frame)).Add(float64(delivered))
	r.log.Debug().Str("recipe", string(id)).Int("delivered", delivered).Msg("recipe subscribers notified")
	return delivered, nil
}

func (r *Router) dropFailed(failed []*Connection) {
	for _, c := range failed {
		if c.State() != StateClosed {
			r.log.Warn().Uint64("conn", c.ID).Str("user", c.UserID()).Msg("write failed, closing connection")
		}
		metrics.WSDeliveryFailures.Inc()
		r.Disconnect(c)
	}
}

func withDefaults(event Event, defaultType string) Event {
	frame := make(Event, len(event)+2)
	for k, v := range event {
		frame[k] = v
	}
	if t, ok := frame["type"].(string); !ok || t == "" {
		frame["type"] = defaultType
	}
	return frame
}

func frameType(frame Event) string {
	t, _ := frame["type"].(string)
	return t
}

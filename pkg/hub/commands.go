package hub

import (
	"github.com/modoterra/cmdhub/pkg/core"
	"github.com/modoterra/cmdhub/pkg/transport/wire"
)

func (h *Hub) registerHandlers() {
	h.RegisterCommand(wire.CmdRegister, h.handleRegister)
	h.RegisterCommand(wire.CmdLast, h.handleLast)
	h.RegisterCommand(wire.CmdLastByInstance, h.handleLastByInstance)
	h.RegisterCommand(wire.CmdAll, h.handleAll)
	h.RegisterCommand(wire.CmdAllByInstance, h.handleAllByInstance)
	h.RegisterCommand(wire.CmdCommandsCount, h.handleCommandsCount)
	h.RegisterCommand(wire.CmdReset, h.handleReset)
	h.RegisterCommand(wire.CmdShutdown, h.handleShutdown)
	h.RegisterCommand(wire.CmdPing, h.handlePing)
}

func (h *Hub) handleRegister(args []string) (Result, error) {
	if err := exactArgs(wire.CmdRegister, args, 1); err != nil {
		return Result{}, err
	}
	id := core.InstanceID(args[0])
	if !h.store.Register(id) {
		h.logger.Info("registration refused", "instance", id)
		return OK(wire.ReplyFalse), nil
	}
	h.logger.Info("instance registered", "instance", id)
	return OK(wire.ReplyTrue), nil
}

func (h *Hub) handleLast(args []string) (Result, error) {
	if err := exactArgs(wire.CmdLast, args, 0); err != nil {
		return Result{}, err
	}
	last, ok := h.store.Last()
	if !ok {
		return NotFound(), nil
	}
	return OK(last), nil
}

func (h *Hub) handleLastByInstance(args []string) (Result, error) {
	if err := exactArgs(wire.CmdLastByInstance, args, 1); err != nil {
		return Result{}, err
	}
	last, ok := h.store.LastByInstance(core.InstanceID(args[0]))
	if !ok {
		return NotFound(), nil
	}
	return OK(last), nil
}

func (h *Hub) handleAll(args []string) (Result, error) {
	if err := exactArgs(wire.CmdAll, args, 0); err != nil {
		return Result{}, err
	}
	return JSON(h.store.All())
}

func (h *Hub) handleAllByInstance(args []string) (Result, error) {
	if err := exactArgs(wire.CmdAllByInstance, args, 1); err != nil {
		return Result{}, err
	}
	log, ok := h.store.AllByInstance(core.InstanceID(args[0]))
	if !ok {
		return NotFound(), nil
	}
	return JSON(log)
}

func (h *Hub) handleCommandsCount(args []string) (Result, error) {
	if err := exactArgs(wire.CmdCommandsCount, args, 0); err != nil {
		return Result{}, err
	}
	return JSON(h.store.Counts())
}

func (h *Hub) handleReset(args []string) (Result, error) {
	if err := exactArgs(wire.CmdReset, args, 0); err != nil {
		return Result{}, err
	}
	h.store.Reset()
	h.logger.Info("log reset")
	return OK(wire.ReplyTrue), nil
}

func (h *Hub) handleShutdown(args []string) (Result, error) {
	if err := exactArgs(wire.CmdShutdown, args, 0); err != nil {
		return Result{}, err
	}
	h.logger.Info("shutdown requested")
	h.stopping = true
	return OK(wire.ReplyTrue), nil
}

func (h *Hub) handlePing(args []string) (Result, error) {
	if err := exactArgs(wire.CmdPing, args, 0); err != nil {
		return Result{}, err
	}
	return OK(wire.ReplyPong), nil
}

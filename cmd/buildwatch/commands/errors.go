package commands

import "git.home.luguber.info/inful/buildwatch/internal/foundation/errors"

func unknownServer(name string) error {
	return errors.NotFoundError("server is not configured").
		WithContext("server", name).
		Build()
}

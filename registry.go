package cohort

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
)

var (
	activationsMux sync.RWMutex
	activations    = make(map[string]func() Activation)
	parametric     = make(map[string]func(string) (Activation, error))
)

// RegisterActivation makes an Activation available for loading by its TypeString(). It is
// expected to be called from the init() of the package that provides the Activation.
func RegisterActivation(f func() Activation) error {
	if f == nil {
		return NilArgError{"Activation constructor"}
	}

	a := f()
	if a == nil {
		return ErrRegisterNilReturn
	}

	activationsMux.Lock()
	defer activationsMux.Unlock()

	if _, ok := activations[a.TypeString()]; ok {
		return errors.Wrapf(ErrRegisterDuplicate, "Can't register activation %q\n", a.TypeString())
	}

	activations[a.TypeString()] = f
	return nil
}

// RegisterAll calls RegisterActivation on each element of the list, stopping at the first error.
func RegisterAll(list []func() Activation) error {
	for i, f := range list {
		if err := RegisterActivation(f); err != nil {
			return errors.Wrapf(err, "Failed to register activation %d of list\n", i)
		}
	}

	return nil
}

// RegisterParametric makes a family of Activations available under tags of the form
// "<name>:<param>". The Activations it returns must give those same tags from TypeString().
func RegisterParametric(name string, f func(param string) (Activation, error)) error {
	if f == nil {
		return NilArgError{"Activation constructor"}
	}

	activationsMux.Lock()
	defer activationsMux.Unlock()

	if _, ok := parametric[name]; ok {
		return errors.Wrapf(ErrRegisterDuplicate, "Can't register activation family %q\n", name)
	}

	parametric[name] = f
	return nil
}

// ActivationByTag returns a fresh instance of the Activation registered under 'tag'. Tags with a
// parameter ("<name>:<param>") are passed to the family registered under <name>.
func ActivationByTag(tag string) (Activation, error) {
	activationsMux.RLock()
	f, ok := activations[tag]
	activationsMux.RUnlock()

	if ok {
		return f(), nil
	}

	name, param, hasParam := strings.Cut(tag, ":")
	if hasParam {
		activationsMux.RLock()
		pf, ok := parametric[name]
		activationsMux.RUnlock()

		if ok {
			a, err := pf(param)
			if err != nil {
				return nil, errors.Wrapf(err, "Can't make activation %q\n", tag)
			} else if a == nil {
				return nil, errors.Wrapf(ErrRegisterNilReturn, "Can't make activation %q\n", tag)
			}
			return a, nil
		}
	}

	return nil, errors.Wrapf(ErrUnknownActivation, "Can't find activation %q\n", tag)
}

// RegisteredActivations returns the tags of every registered Activation, in no particular order
func RegisteredActivations() []string {
	activationsMux.RLock()
	defer activationsMux.RUnlock()

	tags := make([]string, 0, len(activations))
	for t := range activations {
		tags = append(tags, t)
	}
	return tags
}

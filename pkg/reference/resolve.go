package reference

// Resolve looks up attribute on the named reference. External references
// are consulted first; the internal namespace is only tried when the
// external one is missing the name or the attribute.
func (c *Cache) Resolve(reference, attribute string) (any, error) {
	return c.resolve(reference, attribute, false)
}

// ResolveObject returns the whole object registered under reference,
// preferring the external namespace.
func (c *Cache) ResolveObject(reference string) (any, error) {
	return c.resolve(reference, "", true)
}

func (c *Cache) resolve(reference, attribute string, whole bool) (any, error) {
	ext, inExt := c.external[reference]
	in, inInt := c.internal[reference]
	if !inExt && !inInt {
		return nil, &LookupError{Reference: reference, Attribute: attribute, Err: ErrReferenceNotFound}
	}

	for _, candidate := range []struct {
		accessor Accessor
		present  bool
	}{
		{ext, inExt},
		{in, inInt},
	} {
		if !candidate.present {
			continue
		}
		if whole {
			return candidate.accessor.Value(), nil
		}
		if candidate.accessor.Has(attribute) {
			v, err := candidate.accessor.Get(attribute)
			if err != nil {
				return nil, &LookupError{Reference: reference, Attribute: attribute, Err: err}
			}
			return v, nil
		}
	}

	return nil, &LookupError{Reference: reference, Attribute: attribute, Err: ErrAttributeNotFound}
}

// Package leafless is a small HTTP server: routes are path templates with
// ":name" captures, handlers return typed responses that the dispatcher
// serializes, and static directories are registered file by file.
//
//	s, err := leafless.New()
//	if err != nil {
//		return err
//	}
//
//	err = s.Route("/:tool/:path", leafless.Methods{
//		leafless.GET: func(ctx *leafless.Context) (leafless.Response, error) {
//			return leafless.JSON(ctx.Params()), nil
//		},
//	})
//
//	l, err := s.Listen("tcp", ":8080")
package leafless

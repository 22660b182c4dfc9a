// compileinfoprint is imported for the side effect of printing the compileinfo
// to os.StdErr when a sigvival binary starts
package compileinfoprint

import "github.com/carbocation/sigvival/compileinfo"

func init() {
	compileinfo.PrintToStdErr()
}
